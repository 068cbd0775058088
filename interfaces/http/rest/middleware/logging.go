package middleware

import (
	"context"
	"net/http"
	"time"

	"flowboard/pkg/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HTTPRecorder observes served requests
type HTTPRecorder interface {
	ObserveHTTP(method, route string, status int, duration time.Duration)
}

// Logger creates a logging middleware
func Logger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// user context is attached further down the chain
			holder := &userHolder{}
			r = r.WithContext(withUserHolder(r.Context(), holder))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", middleware.GetReqID(r.Context())),
				zap.String("remoteAddr", r.RemoteAddr),
			}
			if holder.user != nil {
				fields = append(fields, zap.String("userID", holder.user.UserID))
			}

			if ww.Status() >= http.StatusInternalServerError {
				logger.Warn("HTTP Request", fields...)
				return
			}
			logger.Info("HTTP Request", fields...)
		})
	}
}

// Metrics records request counts and durations by route pattern
func Metrics(recorder HTTPRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			recorder.ObserveHTTP(r.Method, route, status, time.Since(start))
		})
	}
}

type userHolderKeyType struct{}

var userHolderKey userHolderKeyType

type userHolder struct {
	user *auth.UserContext
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderKey, h)
}

// rememberUser hands the authenticated user back up to Logger
func rememberUser(ctx context.Context, user *auth.UserContext) {
	if holder, ok := ctx.Value(userHolderKey).(*userHolder); ok {
		holder.user = user
	}
}
