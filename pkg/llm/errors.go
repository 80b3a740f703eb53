package llm

import "errors"

// Error code constants for standardized error handling across providers.
// Providers map their native errors to one of these codes.
const (
	ErrCodeNotConfigured  = "not_configured"
	ErrCodeInitialization = "initialization_failed"
	ErrCodeNetwork        = "network_error"
	ErrCodeAuthentication = "authentication_error"
	ErrCodeRateLimit      = "rate_limit_exceeded"
	ErrCodeQuotaExceeded  = "quota_exceeded"
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeServerError    = "service_unavailable"
	ErrCodeParse          = "parse_error"
	ErrCodeUnknown        = "unknown_error"
	ErrCodeModelNotFound  = "model_not_found"
	ErrCodeContextLength  = "context_length_exceeded"
	ErrCodeTimeout        = "timeout"
)

// ProviderError represents a typed error from an LLM provider.
// Use the IsXxx helpers below to classify errors without inspecting fields.
type ProviderError struct {
	Code    string // One of the ErrCode* constants.
	Message string // Human-readable description, safe to show to end users.
	Err     error  // Underlying error (may be nil). Never shown to end users.
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a typed provider error.
func NewProviderError(code, message string, err error) *ProviderError {
	return &ProviderError{Code: code, Message: message, Err: err}
}

// FailureFromError converts any error into a Failure result. Typed provider
// errors keep their code and user-facing message; anything else becomes an
// unknown failure carrying the raw error text.
func FailureFromError(err error) Result {
	if err == nil {
		return Failure(ErrCodeUnknown, "Unknown error")
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return Failure(pe.Code, pe.Message)
	}
	return Failure(ErrCodeUnknown, "Unexpected error: "+err.Error())
}

// IsNotConfiguredError reports whether err means the provider is not usable.
func IsNotConfiguredError(err error) bool {
	return hasCode(err, ErrCodeNotConfigured)
}

// IsInitializationError reports whether err is a provider setup failure.
func IsInitializationError(err error) bool {
	return hasCode(err, ErrCodeInitialization)
}

// IsNetworkError reports whether err is a transport-level failure.
func IsNetworkError(err error) bool {
	return hasCode(err, ErrCodeNetwork)
}

// IsAuthenticationError reports whether err is an authentication failure.
func IsAuthenticationError(err error) bool {
	return hasCode(err, ErrCodeAuthentication)
}

// IsRateLimitError reports whether err is a rate-limit error.
func IsRateLimitError(err error) bool {
	return hasCode(err, ErrCodeRateLimit)
}

// IsQuotaExceededError reports whether err is a service quota error.
func IsQuotaExceededError(err error) bool {
	return hasCode(err, ErrCodeQuotaExceeded)
}

// IsInvalidRequestError reports whether the backend rejected the request.
func IsInvalidRequestError(err error) bool {
	return hasCode(err, ErrCodeInvalidRequest)
}

// IsModelNotFoundError reports whether err is a model-not-found error.
func IsModelNotFoundError(err error) bool {
	return hasCode(err, ErrCodeModelNotFound)
}

// IsContextLengthError reports whether err is a context-length-exceeded error.
func IsContextLengthError(err error) bool {
	return hasCode(err, ErrCodeContextLength)
}

// IsServerError reports whether err is a provider-side server error.
func IsServerError(err error) bool {
	return hasCode(err, ErrCodeServerError)
}

// IsParseError reports whether the backend response could not be decoded.
func IsParseError(err error) bool {
	return hasCode(err, ErrCodeParse)
}

// IsTimeoutError reports whether err is a timeout.
func IsTimeoutError(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

// IsRetryable reports whether the error is transient and the call may succeed on retry.
// Providers never retry; this is for callers that choose to.
func IsRetryable(err error) bool {
	return IsRateLimitError(err) || IsServerError(err) || IsTimeoutError(err) || IsNetworkError(err)
}

func hasCode(err error, code string) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == code
}
