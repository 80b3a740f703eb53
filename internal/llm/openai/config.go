package openai

import (
	"fmt"
	"time"

	"github.com/HerbHall/mobchat/internal/secret"
	"go.uber.org/zap/zapcore"
)

// PlaceholderAPIKey is the sample value shipped in the default config file.
const PlaceholderAPIKey = "your-api-key-here"

// DefaultSystemPrompt is the persona instruction sent as the first message.
const DefaultSystemPrompt = "You are a helpful Minecraft companion. Keep responses brief and Minecraft-focused."

// Config holds the OpenAI provider configuration.
type Config struct {
	Enabled        bool          `mapstructure:"enabled"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	BaseURL        string        `mapstructure:"base_url"`
	SystemPrompt   string        `mapstructure:"system_prompt"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns sensible defaults for OpenAI.
func DefaultConfig() Config {
	return Config{
		Model:          "gpt-3.5-turbo",
		MaxTokens:      150,
		Temperature:    0.7,
		BaseURL:        "https://api.openai.com",
		SystemPrompt:   DefaultSystemPrompt,
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
	}
}

// MarshalLogObject implements zapcore.ObjectMarshaler with the API key redacted.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("enabled", c.Enabled)
	enc.AddString("api_key", secret.Redact(c.APIKey))
	enc.AddString("model", c.Model)
	enc.AddInt("max_tokens", c.MaxTokens)
	enc.AddFloat64("temperature", c.Temperature)
	enc.AddString("base_url", c.BaseURL)
	return nil
}

// String implements fmt.Stringer with the API key redacted.
func (c Config) String() string {
	return fmt.Sprintf("openai{enabled=%t model=%s max_tokens=%d base_url=%s api_key=%s}",
		c.Enabled, c.Model, c.MaxTokens, c.BaseURL, secret.Redact(c.APIKey))
}
