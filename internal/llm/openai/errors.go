package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/HerbHall/mobchat/pkg/llm"
)

// openaiStatusError represents a non-2xx HTTP response from the API.
type openaiStatusError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *openaiStatusError) Error() string {
	return fmt.Sprintf("openai: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// mapError translates OpenAI status and network errors into typed
// llm.ProviderError values. The Message of the returned error is safe to
// show to end users; backend error bodies stay in the wrapped error.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	var se *openaiStatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case 401:
			return llm.NewProviderError(llm.ErrCodeAuthentication, "Invalid API key", err)
		case 429:
			return llm.NewProviderError(llm.ErrCodeRateLimit, "Rate limit exceeded", err)
		case 500, 502, 503:
			return llm.NewProviderError(llm.ErrCodeServerError, "OpenAI service unavailable", err)
		}
		code := llm.ErrCodeUnknown
		switch {
		case se.StatusCode == 404:
			code = llm.ErrCodeModelNotFound
		case se.StatusCode >= 500:
			code = llm.ErrCodeServerError
		case se.StatusCode >= 400:
			code = llm.ErrCodeInvalidRequest
		}
		return llm.NewProviderError(code, fmt.Sprintf("API error (code: %d)", se.StatusCode), err)
	}

	return llm.NewProviderError(llm.ErrCodeNetwork, "Network error: "+describeNetworkError(err), err)
}

// describeNetworkError summarizes a transport failure without echoing
// request URLs or headers.
func describeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "request timed out"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "host not found"
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused"
	case strings.Contains(msg, "no such host"):
		return "host not found"
	case strings.Contains(msg, "connection reset"):
		return "connection reset"
	case strings.Contains(msg, "use of closed network connection"), strings.Contains(msg, "transport closed"):
		return "connection closed"
	}
	return "request failed"
}

func parseError(format string, args ...any) error {
	return llm.NewProviderError(llm.ErrCodeParse, "Failed to parse response: "+fmt.Sprintf(format, args...), nil)
}
