package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/HerbHall/mobchat/internal/config"
	"github.com/HerbHall/mobchat/internal/llm/openai"
	pkgllm "github.com/HerbHall/mobchat/pkg/llm"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// eventLog records provider lifecycle calls across fakes, in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeProvider is a scriptable pkgllm.Provider.
type fakeProvider struct {
	name       string
	configured bool
	initErr    error
	log        *eventLog

	// reply produces the result; nil means echo the message.
	reply func(message string, history []pkgllm.Message) pkgllm.Result

	sends     atomic.Int32
	shutdowns atomic.Int32

	mu          sync.Mutex
	lastHistory []pkgllm.Message
}

func (f *fakeProvider) Name() string       { return f.name }
func (f *fakeProvider) IsConfigured() bool { return f.configured }

func (f *fakeProvider) Initialize(context.Context) error {
	if f.log != nil {
		f.log.add("init:" + f.name)
	}
	return f.initErr
}

func (f *fakeProvider) SendMessage(_ context.Context, message string, history []pkgllm.Message) <-chan pkgllm.Result {
	f.sends.Add(1)
	f.mu.Lock()
	f.lastHistory = append([]pkgllm.Message(nil), history...)
	f.mu.Unlock()

	ch := make(chan pkgllm.Result, 1)
	if f.reply != nil {
		ch <- f.reply(message, history)
	} else {
		ch <- pkgllm.Success("echo: "+message, 3)
	}
	close(ch)
	return ch
}

func (f *fakeProvider) Shutdown() {
	f.shutdowns.Add(1)
	if f.log != nil {
		f.log.add("shutdown:" + f.name)
	}
}

func (f *fakeProvider) history() []pkgllm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastHistory
}

// factoriesFor returns factories that hand out the given fakes and count
// how often each kind was instantiated.
func factoriesFor(fakes map[Kind]*fakeProvider, created map[Kind]*atomic.Int32) map[Kind]Factory {
	out := make(map[Kind]Factory, len(fakes))
	for kind, fp := range fakes {
		out[kind] = func(*config.Snapshot, *zap.Logger) pkgllm.Provider {
			if c := created[kind]; c != nil {
				c.Add(1)
			}
			return fp
		}
	}
	return out
}

func testSnapshot(t *testing.T, set map[string]any) *config.Snapshot {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	for k, val := range set {
		v.Set(k, val)
	}
	snap, _, err := config.Decode(v)
	require.NoError(t, err)
	return snap
}

var bothEnabled = map[string]any{
	"providers.openai.enabled":  true,
	"providers.bedrock.enabled": true,
}

func TestSelect_PriorityOpenAIFirst(t *testing.T) {
	oa := &fakeProvider{name: "OpenAI", configured: true}
	br := &fakeProvider{name: "Bedrock", configured: true}
	created := map[Kind]*atomic.Int32{KindBedrock: {}}

	s := NewSelector(zap.NewNop(), factoriesFor(map[Kind]*fakeProvider{KindOpenAI: oa, KindBedrock: br}, created))
	p, ok := s.Reselect(context.Background(), testSnapshot(t, bothEnabled))

	require.True(t, ok)
	assert.Same(t, oa, p)
	assert.Zero(t, created[KindBedrock].Load(), "bedrock must not be instantiated when openai wins")
	kind, _ := s.ActiveKind()
	assert.Equal(t, KindOpenAI, kind)
}

func TestSelect_FallbackOnInitFailure(t *testing.T) {
	oa := &fakeProvider{name: "OpenAI", configured: true, initErr: errors.New("bad base url")}
	br := &fakeProvider{name: "Bedrock", configured: true}

	core, logs := observer.New(zapcore.WarnLevel)
	s := NewSelector(zap.New(core), factoriesFor(map[Kind]*fakeProvider{KindOpenAI: oa, KindBedrock: br}, nil))
	p, ok := s.Reselect(context.Background(), testSnapshot(t, bothEnabled))

	require.True(t, ok)
	assert.Same(t, br, p)
	assert.Equal(t, int32(1), oa.shutdowns.Load(), "failed candidate must be shut down")
	assert.Equal(t, 1, logs.FilterMessage("provider failed to initialize").Len())
}

func TestSelect_SkipsUnconfigured(t *testing.T) {
	oa := &fakeProvider{name: "OpenAI", configured: false, log: &eventLog{}}
	br := &fakeProvider{name: "Bedrock", configured: true}

	core, logs := observer.New(zapcore.WarnLevel)
	s := NewSelector(zap.New(core), factoriesFor(map[Kind]*fakeProvider{KindOpenAI: oa, KindBedrock: br}, nil))
	p, ok := s.Reselect(context.Background(), testSnapshot(t, bothEnabled))

	require.True(t, ok)
	assert.Same(t, br, p)
	assert.NotContains(t, oa.log.all(), "init:OpenAI", "unconfigured candidate must not be initialized")
	assert.Equal(t, 1, logs.FilterMessage("provider enabled but not configured; skipping").Len())
}

func TestSelect_SkipsDisabled(t *testing.T) {
	oa := &fakeProvider{name: "OpenAI", configured: true}
	br := &fakeProvider{name: "Bedrock", configured: true}
	created := map[Kind]*atomic.Int32{KindOpenAI: {}}

	s := NewSelector(zap.NewNop(), factoriesFor(map[Kind]*fakeProvider{KindOpenAI: oa, KindBedrock: br}, created))
	p, ok := s.Reselect(context.Background(), testSnapshot(t, map[string]any{"providers.bedrock.enabled": true}))

	require.True(t, ok)
	assert.Same(t, br, p)
	assert.Zero(t, created[KindOpenAI].Load())
}

func TestSelect_NoneConfigured(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewSelector(zap.New(core), nil)

	p, ok := s.Reselect(context.Background(), testSnapshot(t, nil))
	assert.False(t, ok)
	assert.Nil(t, p)

	_, active := s.Active()
	assert.False(t, active)

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).FilterMessage("no AI provider could be initialized")
	assert.Equal(t, 1, errs.Len())
}

func TestSelect_OllamaStubNeverWins(t *testing.T) {
	s := NewSelector(zap.NewNop(), nil)
	_, ok := s.Reselect(context.Background(), testSnapshot(t, map[string]any{"providers.ollama.enabled": true}))
	assert.False(t, ok)
}

func TestSelect_RealOpenAIWinsOverBedrock(t *testing.T) {
	snap := testSnapshot(t, map[string]any{
		"providers.openai.enabled":     true,
		"providers.openai.api_key":     "sk-test",
		"providers.bedrock.enabled":    true,
		"providers.bedrock.access_key": "AKIATEST",
		"providers.bedrock.secret_key": "secret",
	})

	s := NewSelector(zap.NewNop(), nil)
	t.Cleanup(s.Shutdown)
	p, ok := s.Reselect(context.Background(), snap)

	require.True(t, ok)
	assert.Equal(t, openai.Name, p.Name())
}

func TestSelect_RealBedrockWhenOpenAIPlaceholder(t *testing.T) {
	snap := testSnapshot(t, map[string]any{
		"providers.openai.enabled":     true,
		"providers.openai.api_key":     openai.PlaceholderAPIKey,
		"providers.bedrock.enabled":    true,
		"providers.bedrock.access_key": "AKIATEST",
		"providers.bedrock.secret_key": "secret",
	})

	s := NewSelector(zap.NewNop(), nil)
	t.Cleanup(s.Shutdown)
	p, ok := s.Reselect(context.Background(), snap)

	require.True(t, ok)
	assert.Equal(t, "Bedrock", p.Name())
}

func TestReselect_ShutsDownPreviousFirst(t *testing.T) {
	log := &eventLog{}
	first := &fakeProvider{name: "first", configured: true, log: log}
	second := &fakeProvider{name: "second", configured: true, log: log}

	var calls atomic.Int32
	factories := map[Kind]Factory{
		KindOpenAI: func(*config.Snapshot, *zap.Logger) pkgllm.Provider {
			if calls.Add(1) == 1 {
				return first
			}
			return second
		},
	}
	snap := testSnapshot(t, map[string]any{"providers.openai.enabled": true})

	s := NewSelector(zap.NewNop(), factories)
	_, ok := s.Reselect(context.Background(), snap)
	require.True(t, ok)
	p, ok := s.Reselect(context.Background(), snap)
	require.True(t, ok)

	assert.Same(t, second, p)
	assert.Equal(t, []string{"init:first", "shutdown:first", "init:second"}, log.all())
}

func TestReselect_ToNoneReleasesPrevious(t *testing.T) {
	fp := &fakeProvider{name: "OpenAI", configured: true}
	s := NewSelector(zap.NewNop(), factoriesFor(map[Kind]*fakeProvider{KindOpenAI: fp}, nil))

	_, ok := s.Reselect(context.Background(), testSnapshot(t, map[string]any{"providers.openai.enabled": true}))
	require.True(t, ok)

	_, ok = s.Reselect(context.Background(), testSnapshot(t, nil))
	assert.False(t, ok)
	assert.Equal(t, int32(1), fp.shutdowns.Load())
}

func TestShutdown_Idempotent(t *testing.T) {
	fp := &fakeProvider{name: "OpenAI", configured: true}
	s := NewSelector(zap.NewNop(), factoriesFor(map[Kind]*fakeProvider{KindOpenAI: fp}, nil))
	s.Reselect(context.Background(), testSnapshot(t, map[string]any{"providers.openai.enabled": true}))

	s.Shutdown()
	s.Shutdown()
	assert.Equal(t, int32(1), fp.shutdowns.Load())
}

func TestActive_ConcurrentWithReselect(t *testing.T) {
	fp := &fakeProvider{name: "OpenAI", configured: true}
	s := NewSelector(zap.NewNop(), factoriesFor(map[Kind]*fakeProvider{KindOpenAI: fp}, nil))
	snap := testSnapshot(t, map[string]any{"providers.openai.enabled": true})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Reselect(context.Background(), snap)
		}()
		go func() {
			defer wg.Done()
			if p, ok := s.Active(); ok {
				assert.Equal(t, "OpenAI", p.Name())
			}
		}()
	}
	wg.Wait()
}

func TestAvailableProviderName(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
		want string
	}{
		{"none", nil, "None"},
		{"openai", map[string]any{"providers.openai.enabled": true}, "OpenAI"},
		{"both", bothEnabled, "OpenAI"},
		{"bedrock", map[string]any{"providers.bedrock.enabled": true}, "Bedrock"},
		{"ollama", map[string]any{"providers.ollama.enabled": true}, "Ollama (not implemented)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AvailableProviderName(testSnapshot(t, tt.set)))
		})
	}
}
