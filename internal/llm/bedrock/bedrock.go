package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/HerbHall/mobchat/internal/llm/worker"
	"github.com/HerbHall/mobchat/internal/secret"
	"github.com/HerbHall/mobchat/pkg/llm"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

// Name is the provider identifier reported by Provider.Name.
const Name = "Bedrock"

// Compile-time interface guard.
var _ llm.Provider = (*Provider)(nil)

// regionPattern matches AWS region names such as us-east-1 or us-gov-west-1.
var regionPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d+$`)

// invoker is the subset of *bedrockruntime.Client the provider uses.
type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type state int

const (
	stateNew state = iota
	stateReady
	stateClosed
)

// Provider implements llm.Provider for Anthropic models on AWS Bedrock.
type Provider struct {
	cfg    Config
	logger *zap.Logger

	// newClient builds the signed runtime client; replaced in tests.
	newClient func(cfg Config, httpClient *http.Client) invoker

	mu        sync.RWMutex
	state     state
	client    invoker
	transport *http.Transport
}

// New creates a Bedrock provider. The signed client is built by Initialize.
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Provider{cfg: cfg, logger: logger, newClient: newRuntimeClient}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return Name }

// IsConfigured implements llm.Provider.
func (p *Provider) IsConfigured() bool {
	return strings.TrimSpace(p.cfg.Region) != "" &&
		secret.IsSet(p.cfg.AccessKey, PlaceholderAccessKey) &&
		secret.IsSet(p.cfg.SecretKey, PlaceholderSecretKey) &&
		strings.TrimSpace(p.cfg.Model) != ""
}

// Initialize validates the region and builds the signed runtime client
// from static credentials. The client is reused for every call.
func (p *Provider) Initialize(_ context.Context) error {
	if !p.IsConfigured() {
		p.logger.Warn("bedrock provider is not properly configured", zap.Object("config", p.cfg))
		return llm.NewProviderError(llm.ErrCodeNotConfigured, "Bedrock provider is not properly configured", nil)
	}
	if !regionPattern.MatchString(p.cfg.Region) {
		p.logger.Error("failed to initialize bedrock provider", zap.String("region", p.cfg.Region))
		return llm.NewProviderError(llm.ErrCodeInitialization, "invalid AWS region", fmt.Errorf("region %q", p.cfg.Region))
	}
	if p.cfg.Endpoint != "" {
		u, err := url.Parse(p.cfg.Endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return llm.NewProviderError(llm.ErrCodeInitialization, "invalid Bedrock endpoint", fmt.Errorf("endpoint %q", p.cfg.Endpoint))
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateReady:
		return nil
	case stateClosed:
		return llm.NewProviderError(llm.ErrCodeInitialization, "Bedrock provider has been shut down", nil)
	}

	p.transport = newTransport()
	p.client = p.newClient(p.cfg, &http.Client{Transport: p.transport, Timeout: p.cfg.Timeout})
	p.state = stateReady

	p.logger.Info("bedrock provider initialized",
		zap.String("model", p.cfg.Model),
		zap.String("region", p.cfg.Region),
	)
	return nil
}

// SendMessage implements llm.Provider.
func (p *Provider) SendMessage(ctx context.Context, message string, history []llm.Message) <-chan llm.Result {
	p.mu.RLock()
	ready := p.state == stateReady
	client := p.client
	p.mu.RUnlock()

	if !ready {
		return worker.Reject(Name, llm.ErrCodeNotConfigured, "Bedrock provider is not properly configured")
	}

	req := p.buildRequest(message, history)
	return worker.Run(ctx, Name, p.logger, func(ctx context.Context, logger *zap.Logger) (string, int, error) {
		return p.invoke(ctx, client, req, logger)
	})
}

// Shutdown closes the signed client's pooled connections.
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
	p.client = nil
	p.transport = nil

	if wasReady {
		p.logger.Info("bedrock provider shut down")
	}
}

// buildRequest assembles the Anthropic messages body: a top-level system
// field and one text content block per message, history first.
func (p *Provider) buildRequest(message string, history []llm.Message) messagesRequest {
	messages := make([]chatMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, textMessage(string(m.Role), m.Content))
	}
	messages = append(messages, textMessage(string(llm.RoleUser), message))

	return messagesRequest{
		System:           p.cfg.SystemPrompt,
		Messages:         messages,
		MaxTokens:        p.cfg.MaxTokens,
		Temperature:      p.cfg.Temperature,
		AnthropicVersion: AnthropicVersion,
	}
}

func (p *Provider) invoke(ctx context.Context, client invoker, req messagesRequest, logger *zap.Logger) (string, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", 0, llm.NewProviderError(llm.ErrCodeInvalidRequest, "Invalid request", fmt.Errorf("marshal messages request: %w", err))
	}

	out, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.cfg.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		mapped := mapError(err)
		fields := []zap.Field{zap.String("aws_error_code", errorCode(err)), zap.Error(err)}
		if llm.IsRateLimitError(mapped) || llm.IsQuotaExceededError(mapped) {
			logger.Warn("bedrock api error", fields...)
		} else {
			logger.Error("bedrock api error", fields...)
		}
		return "", 0, mapped
	}

	content, tokens, err := parseMessages(out.Body)
	if err != nil {
		logger.Error("failed to parse bedrock response", zap.Error(err))
		return "", 0, err
	}
	return content, tokens, nil
}

// parseMessages extracts content[0].text and sums input and output usage.
func parseMessages(data []byte) (string, int, error) {
	var resp messagesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", 0, parseError("%v", err)
	}
	if len(resp.Content) == 0 {
		return "", 0, parseError("no content blocks in response")
	}
	if resp.Content[0].Text == nil {
		return "", 0, parseError("first content block has no text")
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.InputTokens + resp.Usage.OutputTokens
	}
	return *resp.Content[0].Text, tokens, nil
}

// newRuntimeClient builds a SigV4-signed Bedrock runtime client. Retries
// are disabled; retry policy belongs to the caller.
func newRuntimeClient(cfg Config, httpClient *http.Client) invoker {
	opts := bedrockruntime.Options{
		Region:           cfg.Region,
		Credentials:      aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		HTTPClient:       httpClient,
		RetryMaxAttempts: 1,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return bedrockruntime.New(opts)
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// --- Anthropic-on-Bedrock messages API types (internal) ---

type messagesRequest struct {
	System           string        `json:"system"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	AnthropicVersion string        `json:"anthropic_version"`
}

type chatMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textMessage(role, text string) chatMessage {
	return chatMessage{Role: role, Content: []contentBlock{{Type: "text", Text: text}}}
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
