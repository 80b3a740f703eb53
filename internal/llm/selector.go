package llm

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/HerbHall/mobchat/internal/config"
	"github.com/HerbHall/mobchat/internal/llm/bedrock"
	"github.com/HerbHall/mobchat/internal/llm/ollama"
	"github.com/HerbHall/mobchat/internal/llm/openai"
	pkgllm "github.com/HerbHall/mobchat/pkg/llm"
	"go.uber.org/zap"
)

// Kind identifies a backend kind in the configuration.
type Kind string

const (
	KindOpenAI  Kind = "openai"
	KindBedrock Kind = "bedrock"
	KindOllama  Kind = "ollama"
)

// Priority is the fixed selection order; the first kind that is enabled,
// configured and initializes successfully wins.
var Priority = []Kind{KindOpenAI, KindBedrock, KindOllama}

// NoProviderName is reported when no kind is enabled.
const NoProviderName = "None"

// Factory builds an uninitialized provider of one kind from a snapshot.
type Factory func(snap *config.Snapshot, logger *zap.Logger) pkgllm.Provider

// DefaultFactories returns the factories for the built-in backends.
func DefaultFactories() map[Kind]Factory {
	return map[Kind]Factory{
		KindOpenAI: func(s *config.Snapshot, l *zap.Logger) pkgllm.Provider {
			return openai.New(s.Providers.OpenAI, l)
		},
		KindBedrock: func(s *config.Snapshot, l *zap.Logger) pkgllm.Provider {
			return bedrock.New(s.Providers.Bedrock, l)
		},
		KindOllama: func(s *config.Snapshot, l *zap.Logger) pkgllm.Provider {
			return ollama.New(s.Providers.Ollama, l)
		},
	}
}

// Enabled reports whether kind is switched on in snap.
func Enabled(kind Kind, snap *config.Snapshot) bool {
	switch kind {
	case KindOpenAI:
		return snap.Providers.OpenAI.Enabled
	case KindBedrock:
		return snap.Providers.Bedrock.Enabled
	case KindOllama:
		return snap.Providers.Ollama.Enabled
	}
	return false
}

// AvailableProviderName returns the name of the first enabled kind in
// priority order, without instantiating anything.
func AvailableProviderName(snap *config.Snapshot) string {
	switch {
	case snap.Providers.OpenAI.Enabled:
		return openai.Name
	case snap.Providers.Bedrock.Enabled:
		return bedrock.Name
	case snap.Providers.Ollama.Enabled:
		return ollama.Name + " (not implemented)"
	}
	return NoProviderName
}

type selection struct {
	kind     Kind
	provider pkgllm.Provider
}

// Selector picks the active provider from a config snapshot and owns its
// lifecycle. Active is lock-free; Reselect and Shutdown are serialized.
type Selector struct {
	logger    *zap.Logger
	factories map[Kind]Factory

	mu     sync.Mutex
	active atomic.Pointer[selection]
}

// NewSelector creates a selector. A nil factories map uses DefaultFactories.
func NewSelector(logger *zap.Logger, factories map[Kind]Factory) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factories == nil {
		factories = DefaultFactories()
	}
	return &Selector{logger: logger, factories: factories}
}

// Select walks Priority against one snapshot and returns the first provider
// that initializes. Candidates that fail are shut down. It does not touch
// the active provider.
func (s *Selector) Select(ctx context.Context, snap *config.Snapshot) (pkgllm.Provider, Kind, bool) {
	for _, kind := range Priority {
		if !Enabled(kind, snap) {
			continue
		}
		factory, ok := s.factories[kind]
		if !ok {
			continue
		}

		logger := s.logger.With(zap.String("kind", string(kind)))
		logger.Info("creating provider")
		p := factory(snap, s.logger.Named(string(kind)))

		if !p.IsConfigured() {
			logger.Warn("provider enabled but not configured; skipping")
			p.Shutdown()
			continue
		}
		if err := p.Initialize(ctx); err != nil {
			logger.Warn("provider failed to initialize", zap.Error(err))
			p.Shutdown()
			continue
		}

		logger.Info("provider selected", zap.String("provider", p.Name()))
		return p, kind, true
	}

	s.logger.Error("no AI provider could be initialized",
		zap.String("first_enabled", AvailableProviderName(snap)),
	)
	return nil, "", false
}

// Reselect shuts down the active provider, then selects a new one from snap
// and publishes it.
func (s *Selector) Reselect(ctx context.Context, snap *config.Snapshot) (pkgllm.Provider, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.active.Swap(nil); prev != nil {
		s.logger.Info("shutting down previous provider", zap.String("provider", prev.provider.Name()))
		prev.provider.Shutdown()
	}

	p, kind, ok := s.Select(ctx, snap)
	if !ok {
		return nil, false
	}
	s.active.Store(&selection{kind: kind, provider: p})
	return p, true
}

// Active returns the current provider, if any.
func (s *Selector) Active() (pkgllm.Provider, bool) {
	sel := s.active.Load()
	if sel == nil {
		return nil, false
	}
	return sel.provider, true
}

// ActiveKind returns the kind of the current provider, if any.
func (s *Selector) ActiveKind() (Kind, bool) {
	sel := s.active.Load()
	if sel == nil {
		return "", false
	}
	return sel.kind, true
}

// Shutdown releases the active provider. Safe to call more than once.
func (s *Selector) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.active.Swap(nil); prev != nil {
		prev.provider.Shutdown()
	}
}
