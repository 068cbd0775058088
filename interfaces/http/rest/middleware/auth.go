package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flowboard/pkg/auth"
	pkgerrors "flowboard/pkg/errors"

	"go.uber.org/zap"
)

// Headers set by the Lambda entrypoint from the API Gateway JWT authorizer
const (
	HeaderGatewayAuthorized = "X-API-Gateway-Authorized"
	HeaderUserID            = "X-User-ID"
	HeaderUserEmail         = "X-User-Email"
)

// Quota headers describe the tightest limit applied to the request
const (
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// AuthConfig configures Authenticate
type AuthConfig struct {
	Verifier auth.TokenVerifier
	// Nil limiters disable that limit
	IPLimiter   *auth.IPRateLimiter
	UserLimiter *auth.UserRateLimiter
	// TrustGateway accepts identities already verified by API Gateway
	TrustGateway bool
	Errors       *pkgerrors.ErrorHandler
	Logger       *zap.Logger
}

// Authenticate resolves the caller of every request and stores it as an
// auth.UserContext. Handlers read the user id from there and nowhere else.
func Authenticate(cfg AuthConfig) func(next http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	errs := cfg.Errors
	if errs == nil {
		errs = pkgerrors.NewErrorHandler(logger, false)
	}
	needsToken := auth.RequiresToken(cfg.Verifier)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientIP := getClientIP(r)

			if cfg.IPLimiter != nil {
				allowed, err := cfg.IPLimiter.Allow(ctx, clientIP)
				if err != nil {
					logger.Warn("IP rate limiter error", zap.Error(err))
				}
				if remaining, reset, err := cfg.IPLimiter.Remaining(ctx, clientIP); err == nil {
					setQuotaHeaders(w, remaining, reset)
				}
				if !allowed {
					errs.Handle(w, r, pkgerrors.NewRateLimitError("Rate limit exceeded"))
					return
				}
			}

			var user *auth.UserContext
			if cfg.TrustGateway && r.Header.Get(HeaderGatewayAuthorized) == "true" {
				userID := r.Header.Get(HeaderUserID)
				if userID == "" {
					errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Missing user context from API Gateway"))
					return
				}
				user = &auth.UserContext{
					UserID: userID,
					Email:  r.Header.Get(HeaderUserEmail),
					Roles:  []string{"authenticated"},
				}
			} else {
				token := extractToken(r)
				if token == "" && needsToken {
					errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Missing authentication token"))
					return
				}

				var err error
				user, err = cfg.Verifier.Verify(ctx, token)
				if err != nil {
					logger.Warn("Invalid token",
						zap.Error(err),
						zap.String("ip", clientIP),
						zap.String("path", r.URL.Path),
					)
					errs.Handle(w, r, pkgerrors.NewUnauthorizedError(unauthorizedMessage(err)))
					return
				}
			}

			if cfg.UserLimiter != nil {
				allowed, err := cfg.UserLimiter.Allow(ctx, user.UserID)
				if err != nil {
					logger.Warn("User rate limiter error", zap.Error(err))
				}
				if remaining, reset, err := cfg.UserLimiter.Remaining(ctx, user.UserID); err == nil {
					setQuotaHeaders(w, remaining, reset)
				}
				if !allowed {
					errs.Handle(w, r, pkgerrors.NewRateLimitError("User rate limit exceeded"))
					return
				}
			}

			rememberUser(ctx, user)
			logger.Debug("Request authenticated",
				zap.String("userID", user.UserID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)
			next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(ctx, user)))
		})
	}
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}

// extractToken reads the bearer token from the Authorization header or the
// auth_token cookie
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return strings.TrimSpace(header)
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// setQuotaHeaders keeps the lower of an earlier limiter's figure and this one
func setQuotaHeaders(w http.ResponseWriter, remaining int, reset time.Time) {
	if prev, err := strconv.Atoi(w.Header().Get(HeaderRateLimitRemaining)); err == nil && prev < remaining {
		return
	}
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(remaining))
	w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(reset.Unix(), 10))
}

// ClientIP sets RemoteAddr to the address the nearest proxy saw. Only the
// last X-Forwarded-For hop is used; earlier hops come from the client.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := lastForwardedHop(r); ip != "" {
			r.RemoteAddr = ip
		}
		next.ServeHTTP(w, r)
	})
}

func lastForwardedHop(r *http.Request) string {
	values := r.Header.Values("X-Forwarded-For")
	if len(values) == 0 {
		return ""
	}
	hops := strings.Split(values[len(values)-1], ",")
	ip := strings.TrimSpace(hops[len(hops)-1])
	if net.ParseIP(ip) == nil {
		return ""
	}
	return ip
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	if ip := lastForwardedHop(r); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
