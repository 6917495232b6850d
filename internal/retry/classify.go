package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorType buckets an outbound call failure for retry decisions and stats.
type ErrorType string

const (
	ErrRateLimit      ErrorType = "rate_limit"
	ErrTimeout        ErrorType = "timeout"
	ErrServer         ErrorType = "server_error"
	ErrConnection     ErrorType = "connection_error"
	ErrAuthentication ErrorType = "authentication"
	ErrInvalidRequest ErrorType = "invalid_request"
	ErrUnknown        ErrorType = "unknown"
)

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// Classify maps an error to its retry bucket. Unknown errors are classified
// as retriable on the grounds that a transient blip should not fail a
// validation outright.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		switch code := sc.HTTPStatus(); {
		case code == 429:
			return ErrRateLimit
		case code == 401 || code == 403:
			return ErrAuthentication
		case code >= 400 && code < 500:
			return ErrInvalidRequest
		case code >= 500:
			return ErrServer
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return ErrRateLimit
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ErrTimeout
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "no such host"):
		return ErrConnection
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication"):
		return ErrAuthentication
	}
	return ErrUnknown
}

// Retriable reports whether a bucket is worth another attempt.
// Authentication and malformed-request failures never recover on retry.
func Retriable(t ErrorType) bool {
	switch t {
	case ErrRateLimit, ErrTimeout, ErrServer, ErrConnection, ErrUnknown:
		return true
	}
	return false
}
