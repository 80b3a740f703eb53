package llm

import (
	"fmt"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

// Role constants for the Message.Role field. RoleSystem is only used by
// adapters when building wire requests; callers never store it in history.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single turn of a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now()}
}

func (m Message) String() string {
	content := m.Content
	if runes := []rune(content); len(runes) > 50 {
		content = string(runes[:50]) + "..."
	}
	return fmt.Sprintf("Message{role=%s, content=%q}", m.Role, content)
}

// Result is the normalized outcome of a SendMessage call. It is either a
// success carrying generated content and token usage, or a failure carrying
// an error code and a human-readable message. Use Success and Failure to
// construct one; the zero value is a failure.
type Result struct {
	content    string
	tokensUsed int
	code       string
	errMessage string
}

// Success creates a successful result. Negative token counts are clamped
// to zero. An empty content string yields a parse failure instead, since a
// success always carries content.
func Success(content string, tokensUsed int) Result {
	if content == "" {
		return Failure(ErrCodeParse, "Failed to parse response: empty completion")
	}
	if tokensUsed < 0 {
		tokensUsed = 0
	}
	return Result{content: content, tokensUsed: tokensUsed}
}

// Failure creates a failed result with one of the ErrCode* constants.
func Failure(code, message string) Result {
	if code == "" {
		code = ErrCodeUnknown
	}
	if message == "" {
		message = "Unknown error"
	}
	return Result{code: code, errMessage: message}
}

// OK reports whether r is a success.
func (r Result) OK() bool {
	return r.content != "" && r.errMessage == ""
}

// Content returns the generated text, or "" for a failure.
func (r Result) Content() string { return r.content }

// TokensUsed returns the backend-reported token usage (always >= 0).
func (r Result) TokensUsed() int { return r.tokensUsed }

// Code returns the ErrCode* constant for a failure, or "" for a success.
func (r Result) Code() string {
	if r.OK() {
		return ""
	}
	if r.code == "" {
		return ErrCodeUnknown
	}
	return r.code
}

// ErrorMessage returns the failure message, or "" for a success.
func (r Result) ErrorMessage() string {
	if r.OK() {
		return ""
	}
	if r.errMessage == "" {
		return "Unknown error"
	}
	return r.errMessage
}

// String never includes generated content.
func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("Result{success=true, tokensUsed=%d, contentLength=%d}", r.tokensUsed, len(r.content))
	}
	return fmt.Sprintf("Result{success=false, code=%s, error=%q}", r.Code(), r.ErrorMessage())
}
