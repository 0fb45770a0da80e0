package llmbridge

import "fmt"

// EngineError is the base error type for the engine.
type EngineError struct {
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// ProviderError represents an error surfaced by an LLM provider.
type ProviderError struct {
	EngineError
	Provider   string
	StatusCode int
	Code       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d)", e.Provider, e.Message, e.StatusCode)
}

// Provider error variants. The retry classifier treats the type as the first
// word and the {message, code, status} triple as the last.

type AuthenticationError struct{ ProviderError }
type InvalidRequestError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }

// Non-provider errors.

type NetworkError struct{ EngineError }
type RequestTimeoutError struct{ EngineError }

// ConfigurationError means a provider is missing or misconfigured (typically
// an absent credential). Never retried, surfaced immediately.
type ConfigurationError struct{ EngineError }

// ValidationError means the model's reply could not be turned into the
// requested shape: either every extraction tier failed, or the extracted
// value violated the supplied schema. RawText carries the reply for
// diagnostics; FieldPath identifies the offending schema property when known.
type ValidationError struct {
	EngineError
	RawText   string
	FieldPath string
}

func (e *ValidationError) Error() string {
	if e.FieldPath != "" {
		return fmt.Sprintf("validation failed at %s: %s", e.FieldPath, e.Message)
	}
	return "validation failed: " + e.Message
}

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
func ErrorFromStatusCode(statusCode int, message, provider, code string) error {
	pe := ProviderError{
		EngineError: EngineError{Message: message},
		Provider:    provider,
		StatusCode:  statusCode,
		Code:        code,
	}

	switch {
	case statusCode == 401 || statusCode == 403:
		return &AuthenticationError{ProviderError: pe}
	case statusCode == 400 || statusCode == 404 || statusCode == 422:
		return &InvalidRequestError{ProviderError: pe}
	case statusCode == 408:
		return &RequestTimeoutError{EngineError: pe.EngineError}
	case statusCode == 429:
		return &RateLimitError{ProviderError: pe}
	case statusCode >= 500:
		return &ServerError{ProviderError: pe}
	default:
		return &pe
	}
}
