package dto

import "net/http"

// Error codes. Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeValidation  = "ERR_VALIDATION"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeNotFound    = "ERR_NOT_FOUND"
	ErrCodeRateLimited = "ERR_RATE_LIMITED"

	// ErrCodeUpstream is used when the PIM endpoint failed during a run
	ErrCodeUpstream    = "ERR_UPSTREAM"
	// ErrCodeRunDeadline is used when a run exceeded its maximum duration
	ErrCodeRunDeadline = "ERR_RUN_DEADLINE"
	// ErrCodeUnavailable is used when a dependency failed its health check
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeNotFound:    http.StatusNotFound,
	ErrCodeRateLimited: http.StatusTooManyRequests,
	ErrCodeUpstream:    http.StatusBadGateway,
	ErrCodeRunDeadline: http.StatusGatewayTimeout,
	ErrCodeUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code, 500 for
// unknown codes
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
