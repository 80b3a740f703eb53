// Package ollama is the placeholder for a local Ollama backend. It accepts
// configuration so the selector can consider it, but never initializes.
package ollama

import (
	"context"
	"strings"

	"github.com/HerbHall/mobchat/internal/llm/worker"
	"github.com/HerbHall/mobchat/pkg/llm"
	"go.uber.org/zap"
)

// Name is the provider identifier reported by Provider.Name.
const Name = "Ollama"

// ErrNotImplemented is returned by Initialize.
var ErrNotImplemented = llm.NewProviderError(llm.ErrCodeInitialization, "Ollama provider is not yet implemented", nil)

// Compile-time interface guard.
var _ llm.Provider = (*Provider)(nil)

// Provider is a stub llm.Provider for Ollama.
type Provider struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an Ollama stub provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, logger: logger}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return Name }

// IsConfigured reports whether a URL and model are set.
func (p *Provider) IsConfigured() bool {
	return strings.TrimSpace(p.cfg.URL) != "" && strings.TrimSpace(p.cfg.Model) != ""
}

// Initialize always fails.
func (p *Provider) Initialize(_ context.Context) error {
	p.logger.Warn("ollama provider is not yet implemented",
		zap.String("url", p.cfg.URL),
		zap.String("model", p.cfg.Model),
	)
	return ErrNotImplemented
}

// SendMessage implements llm.Provider. It always fails with not_configured.
func (p *Provider) SendMessage(_ context.Context, _ string, _ []llm.Message) <-chan llm.Result {
	return worker.Reject(Name, llm.ErrCodeNotConfigured, "Ollama provider is not yet implemented")
}

// Shutdown implements llm.Provider.
func (p *Provider) Shutdown() {}
