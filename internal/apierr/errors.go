package apierr

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cuadrantes/iph-console/backend/internal/httpclient"
	"github.com/cuadrantes/iph-console/backend/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// AUTH_ - Authentication and authorization errors
	ErrAuthMissing   ErrorCode = "AUTH_MISSING"
	ErrAuthInvalid   ErrorCode = "AUTH_INVALID"
	ErrAuthForbidden ErrorCode = "AUTH_FORBIDDEN"

	// REPORT_ - IPH report operation errors
	ErrReportNotFound      ErrorCode = "REPORT_NOT_FOUND"
	ErrReportInvalidParams ErrorCode = "REPORT_INVALID_PARAMS"
	ErrReportConflict      ErrorCode = "REPORT_CONFLICT"

	// UPSTREAM_ - upstream registry errors, mapped from client error kinds
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamUnreachable ErrorCode = "UPSTREAM_UNREACHABLE"
	ErrUpstreamRejected    ErrorCode = "UPSTREAM_REJECTED"
	ErrUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON  ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue ErrorCode = "VALIDATION_INVALID_VALUE"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"

	// SYSTEM_ - System and server errors
	ErrSystemInternal ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemCanceled ErrorCode = "SYSTEM_CANCELED"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	status    int            // HTTP status code (not serialized)
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// AuthMissing creates an authentication missing error
func AuthMissing(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(ErrAuthMissing, message, http.StatusUnauthorized)
}

// AuthInvalid creates an invalid authentication error
func AuthInvalid(message string) *Error {
	if message == "" {
		message = "Invalid authentication credentials"
	}
	return New(ErrAuthInvalid, message, http.StatusUnauthorized)
}

// AuthForbidden creates a forbidden error
func AuthForbidden(message string) *Error {
	if message == "" {
		message = "Access forbidden"
	}
	return New(ErrAuthForbidden, message, http.StatusForbidden)
}

// ReportNotFound creates a report not found error
func ReportNotFound(id string) *Error {
	return New(ErrReportNotFound, "IPH report not found", http.StatusNotFound).
		WithDetails(map[string]any{"report_id": id})
}

// ReportInvalidParams creates an invalid query parameters error
func ReportInvalidParams(message string) *Error {
	if message == "" {
		message = "Invalid report query parameters"
	}
	return New(ErrReportInvalidParams, message, http.StatusBadRequest)
}

// ValidationInvalidJSON creates an invalid JSON error
func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

// ValidationMissingField creates a missing field error
func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]any{"field": field})
}

// RateLimitGlobal creates a global rate limit error
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

// RateLimitIP creates an IP rate limit error
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

// FromUpstream maps a failed upstream call to a structured API error, so
// handlers return a classifiable code instead of a generic 500.
func FromUpstream(err error) *Error {
	ce, ok := httpclient.AsError(err)
	if !ok {
		return SystemInternal("")
	}
	switch ce.Kind {
	case httpclient.KindTimeout:
		return New(ErrUpstreamTimeout, "Upstream registry timed out", http.StatusGatewayTimeout)
	case httpclient.KindNetwork:
		return New(ErrUpstreamUnreachable, "Upstream registry is unreachable", http.StatusBadGateway)
	case httpclient.KindCanceled:
		return New(ErrSystemCanceled, "Request canceled", 499)
	case httpclient.KindStatus:
		switch {
		case ce.Status == http.StatusNotFound:
			return New(ErrReportNotFound, "IPH report not found", http.StatusNotFound)
		case ce.Status == http.StatusConflict:
			return New(ErrReportConflict, "Report was modified concurrently", http.StatusConflict)
		case ce.Status >= 500 || ce.Status == http.StatusTooManyRequests:
			return New(ErrUpstreamUnavailable, "Upstream registry is unavailable", http.StatusBadGateway).
				WithDetails(map[string]any{"upstream_status": ce.Status, "attempts": ce.Attempts})
		default:
			return New(ErrUpstreamRejected, "Upstream registry rejected the request", http.StatusBadGateway).
				WithDetails(map[string]any{"upstream_status": ce.Status})
		}
	default:
		return SystemInternal("")
	}
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
