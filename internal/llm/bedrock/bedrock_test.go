package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/mobchat/pkg/llm"
	"github.com/HerbHall/mobchat/pkg/llm/llmtest"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testAccessKey = "AKIATESTTESTTEST1234"
	testSecretKey = "secretsecretsecretsecretsecret0123456789"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.AccessKey = testAccessKey
	cfg.SecretKey = testSecretKey
	return cfg
}

// fakeInvoker records requests and answers with a canned body or error.
type fakeInvoker struct {
	mu     sync.Mutex
	inputs []*bedrockruntime.InvokeModelInput
	reply  func(in *bedrockruntime.InvokeModelInput) ([]byte, error)
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	body, err := f.reply(in)
	if err != nil {
		return nil, err
	}
	return &bedrockruntime.InvokeModelOutput{Body: body, ContentType: aws.String("application/json")}, nil
}

func (f *fakeInvoker) lastRequest(t *testing.T) messagesRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.inputs, "no request recorded")
	var req messagesRequest
	require.NoError(t, json.Unmarshal(f.inputs[len(f.inputs)-1].Body, &req))
	return req
}

func replyBody(body string) func(*bedrockruntime.InvokeModelInput) ([]byte, error) {
	return func(*bedrockruntime.InvokeModelInput) ([]byte, error) { return []byte(body), nil }
}

func replyError(err error) func(*bedrockruntime.InvokeModelInput) ([]byte, error) {
	return func(*bedrockruntime.InvokeModelInput) ([]byte, error) { return nil, err }
}

// newFakeProvider returns an uninitialized provider wired to fake.
func newFakeProvider(cfg Config, fake *fakeInvoker, logger *zap.Logger) *Provider {
	p := New(cfg, logger)
	p.newClient = func(Config, *http.Client) invoker { return fake }
	return p
}

func newTestProvider(t *testing.T, fake *fakeInvoker) *Provider {
	t.Helper()
	p := newFakeProvider(testConfig(), fake, zap.NewNop())
	require.NoError(t, p.Initialize(context.Background()))
	t.Cleanup(p.Shutdown)
	return p
}

func send(t *testing.T, p llm.Provider, message string, history []llm.Message) llm.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return llm.Await(ctx, p.SendMessage(context.Background(), message, history))
}

const okBody = `{"id":"msg_1","content":[{"type":"text","text":"Creepers explode."}],"usage":{"input_tokens":20,"output_tokens":7}}`

func TestContract(t *testing.T) {
	llmtest.TestProviderContract(t, func(t *testing.T) llm.Provider {
		return newFakeProvider(testConfig(), &fakeInvoker{reply: replyBody(okBody)}, zap.NewNop())
	})
}

func TestSendMessage_Success(t *testing.T) {
	fake := &fakeInvoker{reply: replyBody(okBody)}
	p := newTestProvider(t, fake)

	r := send(t, p, "what do creepers do?", nil)
	require.True(t, r.OK(), "result = %s", r)
	assert.Equal(t, "Creepers explode.", r.Content())
	assert.Equal(t, 27, r.TokensUsed())

	in := fake.inputs[0]
	assert.Equal(t, DefaultConfig().Model, aws.ToString(in.ModelId))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))
	assert.Equal(t, "application/json", aws.ToString(in.Accept))
}

func TestBuildRequest_WireFormat(t *testing.T) {
	fake := &fakeInvoker{reply: replyBody(okBody)}
	p := newTestProvider(t, fake)

	history := []llm.Message{
		llm.NewMessage(llm.RoleUser, "first"),
		llm.NewMessage(llm.RoleAssistant, "second"),
	}
	send(t, p, "third", history)

	req := fake.lastRequest(t)
	assert.Equal(t, DefaultSystemPrompt, req.System)
	assert.Equal(t, AnthropicVersion, req.AnthropicVersion)
	assert.Equal(t, 512, req.MaxTokens)
	assert.Equal(t, 0.7, req.Temperature)

	want := []chatMessage{
		textMessage("user", "first"),
		textMessage("assistant", "second"),
		textMessage("user", "third"),
	}
	assert.Equal(t, want, req.Messages)

	// Content is an array of typed blocks, not a flat string.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(fake.inputs[0].Body, &raw))
	msgs := raw["messages"].([]any)
	first := msgs[0].(map[string]any)
	blocks, ok := first["content"].([]any)
	require.True(t, ok, "content must be an array")
	assert.Equal(t, map[string]any{"type": "text", "text": "first"}, blocks[0])
	for _, m := range msgs {
		assert.NotEqual(t, "system", m.(map[string]any)["role"], "system prompt belongs in the top-level field")
	}
}

func TestSendMessage_ExceptionMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMsg     string
		wantContain string
	}{
		{
			name:     "throttling",
			err:      &types.ThrottlingException{Message: aws.String("Too many requests")},
			wantCode: llm.ErrCodeRateLimit,
			wantMsg:  "Rate limit exceeded. Please try again later.",
		},
		{
			name:     "validation",
			err:      &types.ValidationException{Message: aws.String("max_tokens must be positive")},
			wantCode: llm.ErrCodeInvalidRequest,
			wantMsg:  "Invalid request: max_tokens must be positive",
		},
		{
			name:     "validation without message",
			err:      &types.ValidationException{},
			wantCode: llm.ErrCodeInvalidRequest,
			wantMsg:  "Invalid request: ValidationException",
		},
		{
			name:     "quota",
			err:      &types.ServiceQuotaExceededException{Message: aws.String("quota")},
			wantCode: llm.ErrCodeQuotaExceeded,
			wantMsg:  "Service quota exceeded. Contact administrator.",
		},
		{
			name:     "access denied",
			err:      &types.AccessDeniedException{Message: aws.String("denied")},
			wantCode: llm.ErrCodeAuthentication,
			wantMsg:  "Access denied: check AWS credentials",
		},
		{
			name:        "wrapped throttling",
			err:         fmt.Errorf("operation error Bedrock Runtime: InvokeModel: %w", &types.ThrottlingException{Message: aws.String("slow down")}),
			wantCode:    llm.ErrCodeRateLimit,
			wantContain: "Rate limit exceeded",
		},
		{
			name:        "model not ready",
			err:         &types.ModelNotReadyException{Message: aws.String("warming up")},
			wantCode:    llm.ErrCodeUnknown,
			wantContain: "Unexpected error: ",
		},
		{
			name:        "internal",
			err:         &types.InternalServerException{Message: aws.String("oops")},
			wantCode:    llm.ErrCodeServerError,
			wantContain: "Unexpected error: ",
		},
		{
			name:     "plain",
			err:      errors.New("socket exploded"),
			wantCode: llm.ErrCodeUnknown,
			wantMsg:  "Unexpected error: socket exploded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, &fakeInvoker{reply: replyError(tt.err)})
			r := send(t, p, "hello", nil)

			require.False(t, r.OK())
			assert.Equal(t, tt.wantCode, r.Code())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, r.ErrorMessage())
			}
			if tt.wantContain != "" {
				assert.Contains(t, r.ErrorMessage(), tt.wantContain)
			}
		})
	}
}

func TestSendMessage_MalformedBody(t *testing.T) {
	bodies := map[string]string{
		"not json":      `<html>`,
		"no content":    `{"usage":{"input_tokens":1,"output_tokens":1}}`,
		"empty content": `{"content":[]}`,
		"no text":       `{"content":[{"type":"image"}]}`,
		"empty text":    `{"content":[{"type":"text","text":""}]}`,
		"wrong type":    `{"content":"text"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			p := newTestProvider(t, &fakeInvoker{reply: replyBody(body)})
			r := send(t, p, "hello", nil)

			require.False(t, r.OK())
			assert.Equal(t, llm.ErrCodeParse, r.Code())
			assert.True(t, strings.HasPrefix(r.ErrorMessage(), "Failed to parse response"), r.ErrorMessage())
		})
	}
}

func TestSendMessage_MissingUsage(t *testing.T) {
	p := newTestProvider(t, &fakeInvoker{reply: replyBody(`{"content":[{"type":"text","text":"ok"}]}`)})
	r := send(t, p, "hello", nil)
	require.True(t, r.OK())
	assert.Equal(t, 0, r.TokensUsed())
}

func TestSendMessage_ConcurrentNoCrossTalk(t *testing.T) {
	fake := &fakeInvoker{reply: func(in *bedrockruntime.InvokeModelInput) ([]byte, error) {
		var req messagesRequest
		if err := json.Unmarshal(in.Body, &req); err != nil {
			return nil, err
		}
		last := req.Messages[len(req.Messages)-1].Content[0].Text
		return json.Marshal(map[string]any{
			"content": []any{map[string]any{"type": "text", "text": "echo:" + last}},
			"usage":   map[string]any{"input_tokens": len(req.Messages), "output_tokens": len(last)},
		})
	}}
	p := newTestProvider(t, fake)

	const n = 32
	var wg sync.WaitGroup
	results := make([]llm.Result, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			history := make([]llm.Message, i%3)
			for j := range history {
				history[j] = llm.NewMessage(llm.RoleAssistant, "h")
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			results[i] = llm.Await(ctx, p.SendMessage(context.Background(), fmt.Sprintf("m%d", i), history))
		}()
	}
	wg.Wait()

	for i, r := range results {
		msg := fmt.Sprintf("m%d", i)
		assert.Equal(t, "echo:"+msg, r.Content(), "call %d", i)
		assert.Equal(t, i%3+1+len(msg), r.TokensUsed(), "call %d", i)
	}
}

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   bool
	}{
		{"valid", func(*Config) {}, true},
		{"empty region", func(c *Config) { c.Region = "" }, false},
		{"placeholder access key", func(c *Config) { c.AccessKey = PlaceholderAccessKey }, false},
		{"placeholder secret key", func(c *Config) { c.SecretKey = PlaceholderSecretKey }, false},
		{"empty secret key", func(c *Config) { c.SecretKey = "" }, false},
		{"empty model", func(c *Config) { c.Model = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			assert.Equal(t, tt.want, New(cfg, nil).IsConfigured())
		})
	}
}

func TestInitialize_InvalidRegion(t *testing.T) {
	for _, region := range []string{"nowhere", "US-EAST-1", "us_east_1", "us-east"} {
		cfg := testConfig()
		cfg.Region = region
		err := New(cfg, zap.NewNop()).Initialize(context.Background())
		assert.True(t, llm.IsInitializationError(err), "region %q: %v", region, err)
	}
}

func TestInitialize_ValidRegions(t *testing.T) {
	for _, region := range []string{"us-east-1", "eu-central-1", "ap-southeast-2", "us-gov-west-1"} {
		cfg := testConfig()
		cfg.Region = region
		p := New(cfg, zap.NewNop())
		assert.NoError(t, p.Initialize(context.Background()), "region %q", region)
		p.Shutdown()
	}
}

func TestInitialize_InvalidEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoint = "not a url"
	err := New(cfg, zap.NewNop()).Initialize(context.Background())
	assert.True(t, llm.IsInitializationError(err), "err = %v", err)
}

func TestInitialize_NeverLogsCredentials(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := testConfig()
	cfg.Model = ""

	_ = New(cfg, zap.New(core)).Initialize(context.Background())

	require.NotZero(t, logs.Len())
	for _, e := range logs.All() {
		dump := fmt.Sprint(e.ContextMap())
		assert.NotContains(t, dump, testAccessKey)
		assert.NotContains(t, dump, testSecretKey)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	p := newTestProvider(t, &fakeInvoker{reply: replyBody(okBody)})
	p.Shutdown()
	p.Shutdown()

	r := send(t, p, "hello", nil)
	assert.Equal(t, llm.ErrCodeNotConfigured, r.Code())
}

// mockRuntime serves the Bedrock runtime REST API for signed-client tests.
func mockRuntime(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newEndpointProvider(t *testing.T, endpoint string) *Provider {
	t.Helper()
	cfg := testConfig()
	cfg.Endpoint = endpoint
	p := New(cfg, zap.NewNop())
	require.NoError(t, p.Initialize(context.Background()))
	t.Cleanup(p.Shutdown)
	return p
}

func TestSignedClient_InvokeModel(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody messagesRequest
	)
	srv := mockRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okBody)) //nolint:errcheck
	})

	p := newEndpointProvider(t, srv.URL)
	r := send(t, p, "hello", nil)

	require.True(t, r.OK(), "result = %s", r)
	assert.Equal(t, "Creepers explode.", r.Content())
	assert.Equal(t, 27, r.TokensUsed())
	assert.True(t, strings.HasPrefix(gotPath, "/model/"), "path = %s", gotPath)
	assert.True(t, strings.HasSuffix(gotPath, "/invoke"), "path = %s", gotPath)
	assert.True(t, strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256"), "request must be SigV4 signed")
	assert.Contains(t, gotAuth, testAccessKey)
	assert.NotContains(t, gotAuth, testSecretKey)
	assert.Equal(t, AnthropicVersion, gotBody.AnthropicVersion)
}

func TestSignedClient_Throttling(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := mockRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amzn-ErrorType", "ThrottlingException")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"Too many requests, please wait before trying again."}`)) //nolint:errcheck
	})

	p := newEndpointProvider(t, srv.URL)
	r := send(t, p, "hello", nil)

	require.False(t, r.OK())
	assert.Contains(t, r.ErrorMessage(), "Rate limit exceeded")
	assert.Equal(t, llm.ErrCodeRateLimit, r.Code())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "provider must not retry")
}

func TestSignedClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	p := newEndpointProvider(t, srv.URL)
	r := send(t, p, "hello", nil)

	require.False(t, r.OK())
	assert.Equal(t, llm.ErrCodeNetwork, r.Code())
	assert.Contains(t, r.ErrorMessage(), "Unexpected error: ")
}

func TestConfigString_Redacted(t *testing.T) {
	s := testConfig().String()
	assert.NotContains(t, s, testAccessKey)
	assert.NotContains(t, s, testSecretKey)
	assert.Contains(t, s, "REDACTED")
}
