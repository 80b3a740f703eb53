package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/HerbHall/mobchat/internal/server"
	pkgllm "github.com/HerbHall/mobchat/pkg/llm"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxChatBodyBytes bounds the POST /api/v1/llm/chat request body.
const maxChatBodyBytes = 64 << 10

// handleStatus reports the active provider.
func (m *Module) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := m.store.Current()
	_, ok := m.selector.Active()
	server.WriteJSON(w, http.StatusOK, StatusResponse{
		Provider:      m.providerName(),
		FirstEnabled:  AvailableProviderName(snap),
		Available:     ok,
		Conversations: m.convs.Len(),
		BotName:       snap.General.BotName,
	})
}

// handleChat sends a user's message with their history to the active
// provider and records the exchange on success.
func (m *Module) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		server.BadRequest(w, "invalid JSON body", r.URL.Path)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		server.BadRequest(w, "user_id must be a UUID", r.URL.Path)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		server.BadRequest(w, "message must not be empty", r.URL.Path)
		return
	}

	snap := m.store.Current()
	provider, ok := m.selector.Active()
	if !ok {
		server.ServiceUnavailable(w, snap.Messages.NoProvider, r.URL.Path)
		return
	}

	history := m.convs.History(userID)
	logger := m.logger.With(zap.Stringer("user_id", userID), zap.String("provider", provider.Name()))

	ctx, cancel := context.WithTimeout(r.Context(), m.chatTimeout)
	defer cancel()
	result := pkgllm.Await(ctx, provider.SendMessage(ctx, message, history))

	if pkgllm.TimedOut(ctx, result) {
		logger.Warn("gave up waiting for chat response", zap.Error(ctx.Err()))
		server.GatewayTimeout(w, snap.Messages.Error, r.URL.Path)
		return
	}
	if !result.OK() {
		logger.Warn("chat request failed",
			zap.String("code", result.Code()),
			zap.String("error", result.ErrorMessage()),
		)
		server.UpstreamError(w, result.Code(), "AI Error: "+result.ErrorMessage(), r.URL.Path)
		return
	}

	m.convs.Append(userID,
		pkgllm.NewMessage(pkgllm.RoleUser, message),
		pkgllm.NewMessage(pkgllm.RoleAssistant, result.Content()),
	)
	logger.Info("chat response delivered", zap.Int("tokens_used", result.TokensUsed()))

	server.WriteJSON(w, http.StatusOK, ChatResponse{
		Reply:      result.Content(),
		TokensUsed: result.TokensUsed(),
		Provider:   provider.Name(),
		BotName:    snap.General.BotName,
	})
}

// handleClearConversation drops one user's history.
func (m *Module) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		server.BadRequest(w, "conversation id must be a UUID", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, ClearResponse{Cleared: m.convs.Clear(userID)})
}

// handleReload re-reads configuration and reselects the provider.
func (m *Module) handleReload(w http.ResponseWriter, r *http.Request) {
	if _, err := m.Reload(); err != nil {
		m.logger.Error("config reload failed", zap.Error(err))
		server.InternalError(w, "config reload failed: "+err.Error(), r.URL.Path)
		return
	}
	m.handleStatus(w, r)
}
