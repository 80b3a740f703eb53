package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/HerbHall/mobchat/internal/llm/worker"
	"github.com/HerbHall/mobchat/internal/secret"
	"github.com/HerbHall/mobchat/pkg/llm"
	"go.uber.org/zap"
)

// Name is the provider identifier reported by Provider.Name.
const Name = "OpenAI"

const (
	completionsPath  = "/v1/chat/completions"
	maxResponseBytes = 4 << 20
	maxErrorBytes    = 1 << 16
)

// Compile-time interface guard.
var _ llm.Provider = (*Provider)(nil)

type state int

const (
	stateNew state = iota
	stateReady
	stateClosed
)

// Provider implements llm.Provider for OpenAI-compatible chat completion APIs.
type Provider struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.RWMutex
	state      state
	endpoint   string
	transport  *http.Transport
	httpClient *http.Client
}

// New creates an OpenAI provider. No resources are allocated until Initialize.
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Provider{cfg: cfg, logger: logger}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return Name }

// IsConfigured implements llm.Provider.
func (p *Provider) IsConfigured() bool {
	return secret.IsSet(p.cfg.APIKey, PlaceholderAPIKey) &&
		strings.TrimSpace(p.cfg.Model) != "" &&
		p.cfg.MaxTokens > 0
}

// Initialize validates the endpoint and builds the pooled HTTP transport.
func (p *Provider) Initialize(_ context.Context) error {
	if !p.IsConfigured() {
		p.logger.Warn("openai provider is not properly configured", zap.Object("config", p.cfg))
		return llm.NewProviderError(llm.ErrCodeNotConfigured, "OpenAI provider is not properly configured", nil)
	}

	endpoint, err := completionsURL(p.cfg.BaseURL)
	if err != nil {
		return llm.NewProviderError(llm.ErrCodeInitialization, "invalid OpenAI base URL", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateReady:
		return nil
	case stateClosed:
		return llm.NewProviderError(llm.ErrCodeInitialization, "OpenAI provider has been shut down", nil)
	}

	p.transport = newTransport(p.cfg)
	// Client timeout is an outer bound; per-operation timeouts are on the connection.
	p.httpClient = &http.Client{
		Transport: p.transport,
		Timeout:   p.cfg.ConnectTimeout + p.cfg.WriteTimeout + p.cfg.ReadTimeout,
	}
	p.endpoint = endpoint
	p.state = stateReady

	p.logger.Info("openai provider initialized",
		zap.String("model", p.cfg.Model),
		zap.String("endpoint", endpoint),
	)
	return nil
}

// SendMessage implements llm.Provider.
func (p *Provider) SendMessage(ctx context.Context, message string, history []llm.Message) <-chan llm.Result {
	p.mu.RLock()
	ready := p.state == stateReady
	client, endpoint := p.httpClient, p.endpoint
	p.mu.RUnlock()

	if !ready {
		return worker.Reject(Name, llm.ErrCodeNotConfigured, "OpenAI provider is not properly configured")
	}

	req := p.buildRequest(message, history)
	return worker.Run(ctx, Name, p.logger, func(ctx context.Context, logger *zap.Logger) (string, int, error) {
		return p.complete(ctx, client, endpoint, req, logger)
	})
}

// Shutdown closes pooled connections. Calls already in flight may fail
// with a network error.
func (p *Provider) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateClosed {
		return
	}
	if p.transport != nil {
		p.transport.CloseIdleConnections()
	}
	wasReady := p.state == stateReady
	p.state = stateClosed
	p.httpClient = nil
	p.transport = nil

	if wasReady {
		p.logger.Info("openai provider shut down")
	}
}

// buildRequest assembles the wire request: system instruction, then
// history in caller order, then the new user message.
func (p *Provider) buildRequest(message string, history []llm.Message) chatRequest {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: string(llm.RoleSystem), Content: p.cfg.SystemPrompt})
	for _, m := range history {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: string(llm.RoleUser), Content: message})

	return chatRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Messages:    messages,
	}
}

func (p *Provider) complete(ctx context.Context, client *http.Client, endpoint string, req chatRequest, logger *zap.Logger) (string, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", 0, llm.NewProviderError(llm.ErrCodeInvalidRequest, "Invalid request", fmt.Errorf("marshal chat request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, llm.NewProviderError(llm.ErrCodeInvalidRequest, "Invalid request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		mapped := mapError(err)
		logger.Error("openai network error", zap.Error(err))
		return "", 0, mapped
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := parseStatusError(resp)
		logger.Warn("openai api error",
			zap.Int("status", se.StatusCode),
			zap.String("type", se.Type),
			zap.String("body", se.Message),
		)
		return "", 0, mapError(se)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		logger.Error("openai read response failed", zap.Error(err))
		return "", 0, mapError(err)
	}

	content, tokens, err := parseCompletion(data)
	if err != nil {
		logger.Error("failed to parse openai response", zap.Error(err))
		return "", 0, err
	}
	return content, tokens, nil
}

// parseCompletion extracts choices[0].message.content and usage.total_tokens.
func parseCompletion(data []byte) (string, int, error) {
	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", 0, parseError("%v", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, parseError("no choices in response")
	}
	msg := resp.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", 0, parseError("missing message content")
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	return *msg.Content, tokens, nil
}

// parseStatusError reads a bounded error response body.
func parseStatusError(resp *http.Response) *openaiStatusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err != nil || errResp.Error.Message == "" {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return &openaiStatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &openaiStatusError{
		StatusCode: resp.StatusCode,
		Type:       errResp.Error.Type,
		Message:    errResp.Error.Message,
	}
}

func completionsURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base url %q: scheme must be http or https", base)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q: missing host", base)
	}
	return strings.TrimRight(u.String(), "/") + completionsPath, nil
}

// newTransport builds a pooled transport with independent connect, read
// and write timeouts. Read and write timeouts apply to every socket
// operation, so a response that stalls mid-body fails after ReadTimeout.
func newTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &deadlineConn{Conn: conn, readTimeout: cfg.ReadTimeout, writeTimeout: cfg.WriteTimeout}, nil
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dial,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		ExpectContinueTimeout: time.Second,
	}
}

// deadlineConn sets a fresh deadline before each Read and Write. A Write
// also restarts the read deadline, so a read left pending on a pooled
// connection measures from the request being sent, not from when the
// connection went idle.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	now := time.Now()
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(now.Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(now.Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// --- OpenAI REST API types (internal) ---

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message *struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
