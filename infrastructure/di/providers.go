package di

import (
	"context"
	"fmt"
	"time"

	"flowboard/application/commands"
	"flowboard/application/commands/bus"
	"flowboard/application/ports"
	"flowboard/application/queries"
	querybus "flowboard/application/queries/bus"
	"flowboard/application/services"
	"flowboard/infrastructure/config"
	"flowboard/infrastructure/messaging"
	"flowboard/infrastructure/messaging/eventbridge"
	"flowboard/infrastructure/persistence/decorators"
	"flowboard/infrastructure/persistence/dynamodb"
	"flowboard/infrastructure/persistence/memory"
	"flowboard/infrastructure/persistence/postgres"
	supabasestore "flowboard/infrastructure/persistence/supabase"
	"flowboard/interfaces/http/rest"
	"flowboard/interfaces/http/rest/handlers"
	"flowboard/interfaces/http/rest/middleware"
	"flowboard/pkg/auth"
	pkgerrors "flowboard/pkg/errors"
	"flowboard/pkg/observability"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

// ProvideCollector creates the Prometheus collector. It is always built so
// the session and bus recorders have somewhere to write; EnableMetrics only
// controls whether the store is instrumented and /metrics is served.
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.MetricsPrefix)
}

// ProvideTracer creates the X-Ray tracer. It records nothing unless
// ENABLE_TRACING is set.
func ProvideTracer(cfg *config.Config, logger *zap.Logger) (*observability.Tracer, error) {
	if !cfg.EnableTracing {
		return observability.NewTracer(cfg.MetricsPrefix, false), nil
	}
	if err := observability.ConfigureTracing(cfg.Environment); err != nil {
		return nil, fmt.Errorf("configure tracing: %w", err)
	}
	logger.Info("X-Ray tracing enabled")
	return observability.NewTracer(cfg.MetricsPrefix, true), nil
}

// ProvideRedisClient connects to Redis when REDIS_URL is set. A nil client
// disables the store cache and the shared rate limits.
func ProvideRedisClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", opts.Addr))
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideSupabaseClient creates the Supabase client when the store or the
// verifier needs it
func ProvideSupabaseClient(cfg *config.Config) (*supabase.Client, error) {
	if cfg.StoreBackend != config.StoreSupabase && cfg.AuthMode != config.AuthSupabase {
		return nil, nil
	}
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

// Checks holds the readiness checks gathered while wiring
type Checks map[string]handlers.Check

// Storage is the decorated board store plus the checks of what it depends on
type Storage struct {
	Store  ports.BoardStore
	Checks Checks
}

// ProvideStorage builds the configured backend and wraps it in the
// decorator chain: Base -> Circuit Breaker -> Cache -> Metrics -> Tracing
func ProvideStorage(
	ctx context.Context,
	cfg *config.Config,
	supa *supabase.Client,
	cache redis.UniversalClient,
	collector *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*Storage, func(), error) {
	checks := Checks{}
	cleanup := func() {}

	var base ports.BoardStore
	switch cfg.StoreBackend {
	case config.StoreMemory:
		base = memory.NewBoardStore()
	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		base = dynamodb.NewBoardStore(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, logger)
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		checks["postgres"] = store.Ping
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close database", zap.Error(err))
			}
		}
		base = store
	case config.StoreSupabase:
		base = supabasestore.NewBoardStore(supa, cfg.SupabaseTable, logger)
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	chain := decorators.Chain{Logger: logger}
	if cfg.EnableBreaker {
		breaker := decorators.DefaultCircuitBreakerConfig("board-store")
		chain.Breaker = &breaker
	}
	if cache != nil {
		chain.Cache = cache
		chain.Caching = decorators.DefaultCachingConfig()
		if cfg.CacheTTL > 0 {
			chain.Caching.TTL = cfg.CacheTTL
		}
		checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx).Err() }
	}
	if cfg.EnableMetrics {
		chain.Recorder = collector
	}
	if tracer.Enabled() {
		chain.Tracer = tracer
	}

	logger.Info("Board store ready",
		zap.String("backend", cfg.StoreBackend),
		zap.Bool("breaker", cfg.EnableBreaker),
		zap.Bool("cache", cache != nil),
	)
	return &Storage{Store: chain.Decorate(base), Checks: checks}, cleanup, nil
}

// ProvideBoardStore exposes the decorated store
func ProvideBoardStore(s *Storage) ports.BoardStore {
	return s.Store
}

// ProvideChecks exposes the readiness checks
func ProvideChecks(s *Storage) Checks {
	return s.Checks
}

// ProvideNoticeInbox creates the in-process notice inbox
func ProvideNoticeInbox(cfg *config.Config, logger *zap.Logger) *services.NoticeInbox {
	return services.NewNoticeInbox(cfg.NoticeCapacity, logger)
}

// ProvideEventPublisher creates the in-process event publisher and, when
// EVENT_BACKEND is eventbridge, forwards its events to the configured bus.
func ProvideEventPublisher(
	ctx context.Context,
	cfg *config.Config,
	collector *observability.Collector,
	logger *zap.Logger,
) (*messaging.LocalPublisher, func(), error) {
	publisher := messaging.NewLocalPublisher(logger, collector)
	if cfg.EventBackend != config.EventsEventBridge {
		return publisher, func() {}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, nil, fmt.Errorf("load AWS config: %w", err)
	}
	bridge := eventbridge.NewPublisher(
		awseventbridge.NewFromConfig(awsCfg),
		eventbridge.Config{BusName: cfg.EventBusName},
		logger,
	)
	publisher.Forward(bridge)

	logger.Info("Forwarding board events", zap.String("eventBus", cfg.EventBusName))
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bridge.Close(closeCtx); err != nil {
			logger.Warn("Failed to flush board events", zap.Error(err))
		}
	}
	return publisher, cleanup, nil
}

// ProvideSessionManager creates the board session manager
func ProvideSessionManager(
	cfg *config.Config,
	store ports.BoardStore,
	inbox *services.NoticeInbox,
	publisher *messaging.LocalPublisher,
	collector *observability.Collector,
	logger *zap.Logger,
) *services.SessionManager {
	return services.NewSessionManager(services.SessionManagerConfig{
		Store:         store,
		Notifier:      inbox,
		Publisher:     publisher,
		Metrics:       collector,
		Canvas:        cfg.Canvas,
		AutosaveDelay: cfg.AutosaveDelay,
		IdleTimeout:   cfg.SessionIdleTimeout,
		Logger:        logger,
	})
}

// ProvideCommandBus creates the command bus and registers board commands
func ProvideCommandBus(
	store ports.BoardStore,
	sessions *services.SessionManager,
	collector *observability.Collector,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(collector),
	)
	if err := commands.Register(commandBus, store, sessions, logger); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates the query bus and registers board queries
func ProvideQueryBus(
	store ports.BoardStore,
	collector *observability.Collector,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(querybus.MetricsMiddleware(collector))
	if err := queries.Register(queryBus, store, logger); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideTokenVerifier selects the verifier for AUTH_MODE
func ProvideTokenVerifier(cfg *config.Config, supa *supabase.Client, logger *zap.Logger) (auth.TokenVerifier, error) {
	switch cfg.AuthMode {
	case config.AuthJWT:
		return auth.NewJWTValidator(auth.JWTConfig{
			SigningMethod: "HS256",
			SecretKey:     cfg.JWTSecret,
			Issuer:        cfg.JWTIssuer,
		})
	case config.AuthSupabase:
		return auth.NewSupabaseVerifier(supa), nil
	case config.AuthNone:
		logger.Warn("Authentication disabled, every request acts as the dev user",
			zap.String("userID", cfg.DevUserID))
		return auth.NewStaticVerifier(cfg.DevUserID)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

// ProvideIPRateLimiter limits requests per client address. The window is
// shared through Redis when a client is configured.
func ProvideIPRateLimiter(cfg *config.Config, client redis.UniversalClient) *auth.IPRateLimiter {
	if cfg.IPRateLimit <= 0 {
		return nil
	}
	if client != nil {
		return auth.NewIPRateLimiterWith(auth.NewDistributedRateLimiter(client, cfg.IPRateLimit, time.Minute, cfg.MetricsPrefix+":"))
	}
	return auth.NewIPRateLimiter(cfg.IPRateLimit)
}

// ProvideUserRateLimiter limits requests per authenticated user
func ProvideUserRateLimiter(cfg *config.Config, client redis.UniversalClient) *auth.UserRateLimiter {
	if cfg.UserRateLimit <= 0 {
		return nil
	}
	if client != nil {
		return auth.NewUserRateLimiterWith(auth.NewDistributedRateLimiter(client, cfg.UserRateLimit, time.Minute, cfg.MetricsPrefix+":"))
	}
	return auth.NewUserRateLimiter(cfg.UserRateLimit)
}

// ProvideErrorHandler creates the HTTP error handler. Internal messages are
// only exposed in development.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouter assembles the HTTP surface
func ProvideRouter(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	sessions *services.SessionManager,
	inbox *services.NoticeInbox,
	verifier auth.TokenVerifier,
	ipLimiter *auth.IPRateLimiter,
	userLimiter *auth.UserRateLimiter,
	checks Checks,
	errs *pkgerrors.ErrorHandler,
	collector *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *rest.Router {
	rc := rest.RouterConfig{
		Boards:   handlers.NewBoardHandler(commandBus, queryBus, errs, logger),
		Sessions: handlers.NewSessionHandler(sessions, inbox, errs, logger),
		Health:   handlers.NewHealthHandler(checks, logger),
		Auth: middleware.AuthConfig{
			Verifier:     verifier,
			IPLimiter:    ipLimiter,
			UserLimiter:  userLimiter,
			TrustGateway: cfg.IsLambda,
			Errors:       errs,
			Logger:       logger,
		},
		Errors:      errs,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	}
	if cfg.EnableMetrics {
		rc.Metrics = collector
		rc.MetricsHandler = collector.Handler()
	}
	// Lambda requests already carry the function's segment
	if tracer.Enabled() && !cfg.IsLambda {
		rc.Tracing = tracer.Middleware
	}
	return rest.NewRouter(rc)
}
