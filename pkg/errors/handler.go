package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse represents the API error response format
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorHandler turns errors into JSON responses and logs them at a level
// chosen by status
type ErrorHandler struct {
	logger        *zap.Logger
	debug         bool
	defaultStatus int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{
		logger:        logger,
		debug:         debug,
		defaultStatus: http.StatusInternalServerError,
	}
}

// Handle processes an error and sends an HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	requestID := requestIDFrom(r)

	var status int
	var response ErrorResponse

	if appErr := GetAppError(err); appErr != nil {
		status = appErr.HTTPStatus
		if status == 0 {
			status = h.defaultStatus
		}

		response = ErrorResponse{
			Error:     true,
			Type:      string(appErr.Type),
			Message:   appErr.Message,
			Code:      appErr.Code,
			Details:   appErr.Details,
			RequestID: requestID,
		}

		h.logError(r, appErr, status)

		if h.debug && appErr.StackTrace != "" {
			details := make(map[string]interface{}, len(appErr.Details)+1)
			for k, v := range appErr.Details {
				details[k] = v
			}
			details["stack_trace"] = appErr.StackTrace
			response.Details = details
		}
	} else {
		status = h.defaultStatus
		response = ErrorResponse{
			Error:     true,
			Type:      string(ErrorTypeInternal),
			Message:   "An internal error occurred",
			RequestID: requestID,
		}

		h.logger.Error("Unhandled error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Int("status", status),
		)

		if h.debug {
			response.Message = err.Error()
		}
	}

	h.sendJSON(w, status, response)
}

// HandleStatus sends an error response with a specific status code
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	response := ErrorResponse{
		Error:     true,
		Type:      statusToErrorType(status),
		Message:   message,
		RequestID: requestIDFrom(r),
	}

	h.logger.Warn("HTTP error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("message", message),
	)

	h.sendJSON(w, status, response)
}

// logError logs an application error with appropriate level
func (h *ErrorHandler) logError(r *http.Request, err *AppError, status int) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", requestIDFrom(r)),
	}

	if err.Code != "" {
		fields = append(fields, zap.String("error_code", err.Code))
	}
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}
	if err.Details != nil {
		fields = append(fields, zap.Any("details", err.Details))
	}

	switch {
	case status >= 500:
		h.logger.Error(err.Message, fields...)
	case status >= 400:
		h.logger.Warn(err.Message, fields...)
	default:
		h.logger.Info(err.Message, fields...)
	}
}

func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// Middleware recovers panics into 500 responses
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestIDFrom(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(middleware.RequestIDHeader)
}

func statusToErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(ErrorTypeValidation)
	case http.StatusUnauthorized:
		return string(ErrorTypeUnauthorized)
	case http.StatusForbidden:
		return string(ErrorTypeForbidden)
	case http.StatusNotFound:
		return string(ErrorTypeNotFound)
	case http.StatusConflict:
		return string(ErrorTypeConflict)
	case http.StatusTooManyRequests:
		return string(ErrorTypeRateLimit)
	case http.StatusServiceUnavailable:
		return string(ErrorTypeUnavailable)
	case http.StatusBadGateway:
		return string(ErrorTypeExternal)
	default:
		return string(ErrorTypeInternal)
	}
}
