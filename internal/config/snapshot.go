package config

import (
	"fmt"
	"strings"

	"github.com/HerbHall/mobchat/internal/llm/bedrock"
	"github.com/HerbHall/mobchat/internal/llm/ollama"
	"github.com/HerbHall/mobchat/internal/llm/openai"
	"github.com/HerbHall/mobchat/internal/secret"
	"github.com/spf13/viper"
)

// Defaults for the general and messages sections.
const (
	DefaultMaxMessagesPerUser = 10
	DefaultBotName            = "MOBChat"
	DefaultNoProviderMessage  = "No AI provider is currently enabled. Contact an administrator."
	DefaultErrorMessage       = "An error occurred while processing your message. Please try again."
)

// Snapshot is one immutable, validated view of the configuration. A new
// Snapshot is built on every load; existing ones are never mutated.
type Snapshot struct {
	Logging   Logging   `mapstructure:"logging"`
	Server    Server    `mapstructure:"server"`
	Providers Providers `mapstructure:"providers"`
	General   General   `mapstructure:"general"`
	Messages  Messages  `mapstructure:"messages"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Server holds the HTTP listener configuration.
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address as host:port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Providers holds one sub-config per backend kind.
type Providers struct {
	OpenAI  openai.Config  `mapstructure:"openai"`
	Bedrock bedrock.Config `mapstructure:"bedrock"`
	Ollama  ollama.Config  `mapstructure:"ollama"`
}

// General holds chat behaviour settings.
type General struct {
	MaxMessagesPerUser int    `mapstructure:"max_messages_per_user"`
	SystemPrompt       string `mapstructure:"system_prompt"` // overrides the providers' persona when set
	BotName            string `mapstructure:"bot_name"`
}

// Messages holds user-facing message templates.
type Messages struct {
	NoProvider string `mapstructure:"no_provider"`
	Error      string `mapstructure:"error"`
}

// Decode unmarshals v into a validated Snapshot. Corrections applied
// during validation are returned as warnings for the caller to log.
func Decode(v *viper.Viper) (*Snapshot, []string, error) {
	var s Snapshot
	if err := v.Unmarshal(&s); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	warnings := s.Validate()
	return &s, warnings, nil
}

// Validate corrects out-of-range values in place and returns one warning
// per correction or suspicious setting. It never fails.
func (s *Snapshot) Validate() []string {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	oa := &s.Providers.OpenAI
	if oa.MaxTokens <= 0 {
		def := openai.DefaultConfig().MaxTokens
		warn("providers.openai.max_tokens must be positive (got %d), using %d", oa.MaxTokens, def)
		oa.MaxTokens = def
	}
	if oa.Enabled && !secret.IsSet(oa.APIKey, openai.PlaceholderAPIKey) {
		warn("OpenAI is enabled but no API key is configured")
	}

	br := &s.Providers.Bedrock
	if br.MaxTokens <= 0 {
		def := bedrock.DefaultConfig().MaxTokens
		warn("providers.bedrock.max_tokens must be positive (got %d), using %d", br.MaxTokens, def)
		br.MaxTokens = def
	}
	if br.Enabled && (!secret.IsSet(br.AccessKey, bedrock.PlaceholderAccessKey) || !secret.IsSet(br.SecretKey, bedrock.PlaceholderSecretKey)) {
		warn("Bedrock is enabled but credentials are not configured")
	}

	if !oa.Enabled && !br.Enabled && !s.Providers.Ollama.Enabled {
		warn("no AI provider is enabled; chat will be unavailable")
	}

	if s.General.MaxMessagesPerUser < 0 {
		warn("general.max_messages_per_user must not be negative (got %d), using %d",
			s.General.MaxMessagesPerUser, DefaultMaxMessagesPerUser)
		s.General.MaxMessagesPerUser = DefaultMaxMessagesPerUser
	}
	if prompt := strings.TrimSpace(s.General.SystemPrompt); prompt != "" {
		if oa.SystemPrompt == "" {
			oa.SystemPrompt = prompt
		}
		if br.SystemPrompt == "" {
			br.SystemPrompt = prompt
		}
	}
	if s.General.BotName == "" {
		s.General.BotName = DefaultBotName
	}
	if s.Messages.NoProvider == "" {
		s.Messages.NoProvider = DefaultNoProviderMessage
	}
	if s.Messages.Error == "" {
		s.Messages.Error = DefaultErrorMessage
	}
	return warnings
}
