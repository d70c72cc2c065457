package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// retryBaseDelay is the first back-off interval; it doubles on every attempt.
var retryBaseDelay = time.Second

type rateLimitError struct {
	err error
}

func (e *rateLimitError) Error() string { return "rate limited" }
func (e *rateLimitError) Unwrap() error { return e.err }

type serverError struct {
	statusCode int
	body       string
}

func (e *serverError) Error() string { return "server error: " + e.body }

type authError struct {
	message string
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

func isRetryable(err error) bool {
	var (
		rl *rateLimitError
		se *serverError
	)
	return errors.As(err, &rl) || errors.As(err, &se)
}

// classifyStatus maps an HTTP status returned by a provider onto the
// error types retryWithBackoff understands.
func classifyStatus(status int, err error) error {
	switch {
	case status == 429:
		return &rateLimitError{err: err}
	case status == 401 || status == 403:
		return &authError{message: err.Error()}
	case status >= 500:
		return &serverError{statusCode: status, body: err.Error()}
	case status != 0:
		return fmt.Errorf("API error (status %d): %w", status, err)
	default:
		return err
	}
}

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * retryBaseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
