package helpers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"market-pulse/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type MarketObserverError struct {
	Message string
	Cause   error
}

func (e *MarketObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MarketObserverError) Unwrap() error {
	return e.Cause
}

type ConfigurationError struct{ MarketObserverError }

// -----------------------------------------------------------------------------
// Fetch error taxonomy
// -----------------------------------------------------------------------------

type ErrorKind string

const (
	KindTimeout       ErrorKind = "Timeout"
	KindRateLimited   ErrorKind = "RateLimited"
	KindUpstreamError ErrorKind = "UpstreamError"
	KindNoDataFetched ErrorKind = "NoDataEverFetched"
)

// FetchError is returned by the upstream path. It never leaves the cache.
type FetchError struct {
	MarketObserverError
	Kind       ErrorKind
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.MarketObserverError.Error())
}

// NewFetchError builds a FetchError of the given kind.
func NewFetchError(kind ErrorKind, statusCode int, message string, cause error) *FetchError {
	return &FetchError{
		MarketObserverError: MarketObserverError{Message: message, Cause: cause},
		Kind:                kind,
		StatusCode:          statusCode,
	}
}

// -----------------------------------------------------------------------------

// KindOf classifies any error coming out of the upstream path.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindUpstreamError
}

// IsRateLimited reports whether the upstream refused the call for rate reasons.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	Logger     *logger.Logger
	ErrorCount int // consecutive failures since the last success

	counts map[ErrorKind]int64
	mu     sync.Mutex
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewLogger(nil, "ErrorHandler")
	}
	return &ErrorHandler{
		Logger: log,
		counts: make(map[ErrorKind]int64),
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ErrorCount = 0
}

// -----------------------------------------------------------------------------

// Handle logs err according to its kind and returns that kind.
func (e *ErrorHandler) Handle(err error, source string) ErrorKind {
	if err == nil {
		return ""
	}

	kind := KindOf(err)

	e.mu.Lock()
	if kind != KindNoDataFetched {
		e.ErrorCount++
	}
	e.counts[kind]++
	consecutive := e.ErrorCount
	e.mu.Unlock()

	switch kind {
	case KindRateLimited:
		e.Logger.Warning("%s: upstream rate limit hit, serving cached data (consecutive failures: %d): %v", source, consecutive, err)
	case KindTimeout:
		e.Logger.Error("%s: upstream request timed out (consecutive failures: %d): %v", source, consecutive, err)
	case KindNoDataFetched:
		e.Logger.Warning("%s: no snapshot fetched yet, serving fallback data", source)
	default:
		e.Logger.Error("%s: upstream error (consecutive failures: %d): %v", source, consecutive, err)
	}

	return kind
}

// -----------------------------------------------------------------------------

// Counts returns how many errors of each kind were handled.
func (e *ErrorHandler) Counts() map[ErrorKind]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[ErrorKind]int64, len(e.counts))
	for k, v := range e.counts {
		out[k] = v
	}
	return out
}

// -----------------------------------------------------------------------------

// Consecutive returns the current run of failures.
func (e *ErrorHandler) Consecutive() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ErrorCount
}
