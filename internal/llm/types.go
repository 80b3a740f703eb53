package llm

// StatusResponse is the response for GET /api/v1/llm/status.
type StatusResponse struct {
	Provider      string `json:"provider"`      // active provider name or "None"
	FirstEnabled  string `json:"first_enabled"` // first enabled kind in priority order
	Available     bool   `json:"available"`     // whether chat requests can be served
	Conversations int    `json:"conversations"` // users with stored history
	BotName       string `json:"bot_name"`
}

// ChatRequest is the request body for POST /api/v1/llm/chat.
type ChatRequest struct {
	UserID  string `json:"user_id"` // UUID
	Message string `json:"message"`
}

// ChatResponse is the response for a successful POST /api/v1/llm/chat.
type ChatResponse struct {
	Reply      string `json:"reply"`
	TokensUsed int    `json:"tokens_used"`
	Provider   string `json:"provider"`
	BotName    string `json:"bot_name"`
}

// ClearResponse is the response for DELETE /api/v1/llm/conversations/{id}.
type ClearResponse struct {
	Cleared bool `json:"cleared"`
}
