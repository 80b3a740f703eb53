// Package llm hosts the chat provider layer: the Selector that picks one
// backend from configuration and the Module that exposes it over HTTP.
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/mobchat/internal/config"
	"github.com/HerbHall/mobchat/internal/conversation"
	pkgllm "github.com/HerbHall/mobchat/pkg/llm"
	"github.com/HerbHall/mobchat/pkg/plugin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
)

// DefaultChatTimeout bounds how long a chat request waits for a provider.
const DefaultChatTimeout = 2 * time.Minute

// Option configures a Module.
type Option func(*Module)

// WithStore makes the module read configuration from an existing store
// instead of decoding its own from Dependencies.Config.
func WithStore(s *config.Store) Option {
	return func(m *Module) { m.store = s }
}

// WithFactories overrides the provider factories used by the selector.
func WithFactories(f map[Kind]Factory) Option {
	return func(m *Module) { m.factories = f }
}

// WithChatTimeout overrides DefaultChatTimeout.
func WithChatTimeout(d time.Duration) Option {
	return func(m *Module) { m.chatTimeout = d }
}

// Module implements the chat plugin: it owns the selector and the
// per-user conversation history.
type Module struct {
	logger      *zap.Logger
	store       *config.Store
	factories   map[Kind]Factory
	selector    *Selector
	convs       *conversation.Manager
	chatTimeout time.Duration

	stopOnce sync.Once
}

// New creates a new chat plugin instance.
func New(opts ...Option) *Module {
	m := &Module{chatTimeout: DefaultChatTimeout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "llm",
		Version:     "0.1.0",
		Description: "Chat provider selection (OpenAI, Bedrock) and conversation history",
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

// Init loads the configuration snapshot and selects the initial provider.
// Without WithStore, deps.Config is decoded as the top-level configuration
// (providers.*, general.*, messages.*). Finding no provider is not an
// error; chat requests are refused instead.
func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	if m.store == nil {
		v := viper.New()
		if vc, ok := deps.Config.(*config.ViperConfig); ok {
			v = vc.Viper()
		}
		config.SetDefaults(v)
		store, err := config.NewStore(v, m.logger.Named("config"))
		if err != nil {
			return fmt.Errorf("load llm config: %w", err)
		}
		m.store = store
	}

	snap := m.store.Current()
	m.selector = NewSelector(m.logger.Named("selector"), m.factories)
	m.convs = conversation.NewManager(snap.General.MaxMessagesPerUser)

	m.selector.Reselect(ctx, snap)
	m.store.OnChange(m.applySnapshot)

	m.logger.Info("llm plugin initialized",
		zap.String("provider", m.providerName()),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	if p, ok := m.selector.Active(); ok {
		m.logger.Info("chat provider ready", zap.String("provider", p.Name()))
		return nil
	}
	m.logger.Warn("no chat provider available; chat requests will be refused",
		zap.String("first_enabled", AvailableProviderName(m.store.Current())),
	)
	return nil
}

// Stop shuts down the active provider. Safe to call more than once.
func (m *Module) Stop(_ context.Context) error {
	m.stopOnce.Do(func() {
		if m.selector != nil {
			m.selector.Shutdown()
		}
		if m.logger != nil {
			m.logger.Info("llm plugin stopped")
		}
	})
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.selector == nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: "not initialized"}
	}
	p, ok := m.selector.Active()
	if !ok {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "no chat provider available",
			Details: map[string]string{"first_enabled": AvailableProviderName(m.store.Current())},
		}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Details: map[string]string{"provider": p.Name()},
	}
}

// Provider returns the active chat provider, if any.
func (m *Module) Provider() (pkgllm.Provider, bool) {
	if m.selector == nil {
		return nil, false
	}
	return m.selector.Active()
}

// Conversations returns the per-user history manager.
func (m *Module) Conversations() *conversation.Manager {
	return m.convs
}

// Reload re-reads configuration; the store's change listener reselects.
func (m *Module) Reload() (*config.Snapshot, error) {
	return m.store.Reload()
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
		{Method: "POST", Path: "/chat", Handler: m.handleChat},
		{Method: "DELETE", Path: "/conversations/{id}", Handler: m.handleClearConversation},
		{Method: "POST", Path: "/reload", Handler: m.handleReload},
	}
}

// applySnapshot runs on every config reload.
func (m *Module) applySnapshot(snap *config.Snapshot) {
	m.convs.SetLimit(snap.General.MaxMessagesPerUser)
	m.selector.Reselect(context.Background(), snap)
	m.logger.Info("llm configuration reloaded", zap.String("provider", m.providerName()))
}

func (m *Module) providerName() string {
	if p, ok := m.selector.Active(); ok {
		return p.Name()
	}
	return NoProviderName
}
