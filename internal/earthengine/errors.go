package earthengine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrComputeBudgetExceeded is returned when a reduction touches more pixels
	// than the request allows (maxPixels) or than the service permits.
	ErrComputeBudgetExceeded = errors.New("compute budget exceeded")

	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("compute service unavailable")
)

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Op         string
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("earthengine %s: %d %s: %s", e.Op, e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("earthengine %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Is lets errors.Is match ErrComputeBudgetExceeded on pixel-limit failures.
func (e *APIError) Is(target error) bool {
	if target != ErrComputeBudgetExceeded {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "too many pixels") ||
		strings.Contains(msg, "maxpixels") ||
		strings.Contains(msg, "memory limit exceeded") ||
		strings.Contains(msg, "computation timed out")
}
