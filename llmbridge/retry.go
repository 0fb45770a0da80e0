package llmbridge

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy configures transient-failure recovery with exponential backoff.
// Classification is pattern-driven: an error is retryable when any pattern
// matches its message, code, or numeric status, case-insensitively.
type RetryPolicy struct {
	MaxRetries int           // retry attempts after the initial one
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // ceiling for a single backoff wait

	// RetryablePatterns are substrings matched against the failure's
	// message, code, and status. Matching is case-insensitive.
	RetryablePatterns []string

	// OnRetry, when set, is invoked before each backoff wait.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the policy the orchestrator uses unless told
// otherwise.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		RetryablePatterns: []string{
			"timeout",
			"timed out",
			"rate limit",
			"rate_limit",
			"overloaded",
			"temporarily unavailable",
			"connection",
			"network",
			"429",
			"500",
			"502",
			"503",
			"504",
		},
	}
}

// Delay returns the backoff before retry attempt n (0-indexed): base * 2^n,
// capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// IsRetryable reports whether err is safe to re-execute. It is a pure
// function of the error's message, code, and status.
//
// Configuration, authentication, validation, and invalid-request failures are
// never retryable regardless of their text: retrying an absent credential or
// a malformed request cannot succeed, and an authentication failure must not
// be mistaken for the HTTP-style transients it superficially resembles.
func (p RetryPolicy) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var confErr *ConfigurationError
	var valErr *ValidationError
	var authErr *AuthenticationError
	var invErr *InvalidRequestError
	if errors.As(err, &confErr) || errors.As(err, &valErr) ||
		errors.As(err, &authErr) || errors.As(err, &invErr) {
		return false
	}

	message, code, status := errorFields(err)
	message = strings.ToLower(message)
	code = strings.ToLower(code)
	for _, pattern := range p.RetryablePatterns {
		pattern = strings.ToLower(pattern)
		if pattern == "" {
			continue
		}
		if strings.Contains(message, pattern) || strings.Contains(code, pattern) {
			return true
		}
		if status != 0 && strings.Contains(strconv.Itoa(status), pattern) {
			return true
		}
	}
	return false
}

// errorFields extracts the {message, code, status} triple used for
// classification. Fields an error does not carry come back zero-valued;
// absence never causes a classification failure.
func errorFields(err error) (message, code string, status int) {
	message = err.Error()

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message, pe.Code, pe.StatusCode
	}
	switch e := err.(type) {
	case *AuthenticationError:
		return e.Message, e.Code, e.StatusCode
	case *InvalidRequestError:
		return e.Message, e.Code, e.StatusCode
	case *RateLimitError:
		return e.Message, e.Code, e.StatusCode
	case *ServerError:
		return e.Message, e.Code, e.StatusCode
	}
	return message, "", 0
}

// Retry executes fn, re-invoking it with exponential backoff while failures
// classify as retryable under the policy. The original error is always
// propagated unchanged once retries are exhausted or the failure is not
// retryable. Backoff waits are cancellable through ctx.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}

	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		if !policy.IsRetryable(err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		select {
		case <-ctx.Done():
			return zero, &RequestTimeoutError{EngineError: EngineError{
				Message: "request cancelled during retry backoff",
				Cause:   ctx.Err(),
			}}
		case <-time.After(delay):
		}

		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
	}

	return zero, err
}
