package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"flowboard/infrastructure/config"
	"flowboard/infrastructure/di"
	"flowboard/interfaces/http/rest/middleware"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	container *di.Container

	coldStart     = true
	coldStartTime time.Time
)

// init runs during cold start
func init() {
	coldStartTime = time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.IsLambda = true

	// Connections live as long as the execution environment.
	container, _, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	chiRouter, ok := container.Router.Setup().(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)),
	)
}

// identityHeaders are trusted only when this entrypoint sets them
var identityHeaders = []string{
	middleware.HeaderGatewayAuthorized,
	middleware.HeaderUserID,
	middleware.HeaderUserEmail,
}

// applyAuthorizer replaces client-supplied identity headers with the claims
// API Gateway verified. It reports whether a user was found.
func applyAuthorizer(req *events.APIGatewayV2HTTPRequest) bool {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	for name := range req.Headers {
		for _, h := range identityHeaders {
			if strings.EqualFold(name, h) {
				delete(req.Headers, name)
			}
		}
	}

	authorizer := req.RequestContext.Authorizer
	if authorizer == nil {
		return false
	}

	var userID, email string
	switch {
	case authorizer.JWT != nil:
		userID = authorizer.JWT.Claims["sub"]
		email = authorizer.JWT.Claims["email"]
	case authorizer.Lambda != nil:
		userID, _ = authorizer.Lambda["sub"].(string)
		email, _ = authorizer.Lambda["email"].(string)
	}
	if userID == "" {
		return false
	}

	req.Headers[middleware.HeaderUserID] = userID
	if email != "" {
		req.Headers[middleware.HeaderUserEmail] = email
	}
	req.Headers[middleware.HeaderGatewayAuthorized] = "true"
	return true
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	logger := container.Logger

	if !applyAuthorizer(&req) {
		logger.Debug("No authorizer context, falling back to token verification",
			zap.String("path", req.RequestContext.HTTP.Path),
		)
	}

	var resp events.APIGatewayV2HTTPResponse
	err := container.Tracer.Trace(ctx, "proxy", func(ctx context.Context) error {
		container.Tracer.Annotate(ctx, "route", req.RouteKey)
		var proxyErr error
		resp, proxyErr = chiLambda.ProxyWithContextV2(ctx, req)
		return proxyErr
	})

	// The environment may be frozen before a debounced save fires, and the
	// next request may land on another instance, so nothing outlives the
	// invocation.
	container.Sessions.CloseAll(context.WithoutCancel(ctx))
	container.Events.Flush(context.WithoutCancel(ctx))

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	fields := []zap.Field{
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.String("request_id", req.RequestContext.RequestID),
		zap.Int("status_code", resp.StatusCode),
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		logger.Error("Lambda error response", append(fields, zap.String("body", resp.Body))...)
	} else {
		logger.Info("Lambda response", fields...)
	}

	return resp, err
}

func main() {
	lambda.Start(Handler)
}
