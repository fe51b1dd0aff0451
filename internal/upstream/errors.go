package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Category normalizes why an external fetch failed.
type Category string

const (
	// CategoryTimeout indicates the upstream took too long to respond
	CategoryTimeout Category = "timeout"

	// CategoryOutage indicates the upstream could not be reached
	CategoryOutage Category = "provider_outage"

	// CategoryBadStatus indicates a non-2xx response
	CategoryBadStatus Category = "bad_status"

	// CategoryBadData indicates a body that could not be decoded
	CategoryBadData Category = "bad_data"

	// CategoryContractMismatch indicates a decodable body of the wrong shape
	CategoryContractMismatch Category = "contract_mismatch"

	// CategoryCircuitOpen indicates the call was refused locally by a circuit breaker
	CategoryCircuitOpen Category = "circuit_open"
)

// Error wraps an upstream failure with its source and category.
type Error struct {
	Category   Category
	Source     string
	Message    string
	StatusCode int
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("upstream %s [%s]: %s: %v", e.Source, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("upstream %s [%s]: %s", e.Source, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError creates a categorized upstream error.
func NewError(category Category, source, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Source:     source,
		Message:    message,
		Underlying: underlying,
	}
}

// StatusError reports a non-2xx response.
func StatusError(source string, status int) *Error {
	return &Error{
		Category:   CategoryBadStatus,
		Source:     source,
		Message:    fmt.Sprintf("unexpected status %d", status),
		StatusCode: status,
	}
}

// TransportError classifies a failure from http.Client.Do.
func TransportError(source string, err error) *Error {
	if isTimeout(err) {
		return NewError(CategoryTimeout, source, "request timed out", err)
	}
	return NewError(CategoryOutage, source, "request failed", err)
}

// CategoryOf extracts the category from an error chain. Uncategorized errors
// report CategoryOutage.
func CategoryOf(err error) Category {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Category
	}
	return CategoryOutage
}

// IsOutage reports whether the failure says something about upstream health
// rather than about one payload.
func IsOutage(err error) bool {
	switch CategoryOf(err) {
	case CategoryTimeout, CategoryOutage:
		return true
	case CategoryBadStatus:
		var ue *Error
		if errors.As(err, &ue) {
			return ue.StatusCode >= 500
		}
	}
	return false
}

// IsRetryable reports whether the same request may succeed next tick without
// anything changing on the caller's side. An open circuit counts.
func IsRetryable(err error) bool {
	return IsOutage(err) || CategoryOf(err) == CategoryCircuitOpen
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
