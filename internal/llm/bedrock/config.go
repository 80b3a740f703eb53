package bedrock

import (
	"fmt"
	"time"

	"github.com/HerbHall/mobchat/internal/secret"
	"go.uber.org/zap/zapcore"
)

// Placeholder credential values shipped in the default config file.
const (
	PlaceholderAccessKey = "your-access-key"
	PlaceholderSecretKey = "your-secret-key"
)

// AnthropicVersion is the protocol version tag sent with every invocation.
const AnthropicVersion = "bedrock-2023-05-31"

// DefaultSystemPrompt is the persona instruction sent in the system field.
const DefaultSystemPrompt = "You are a helpful Minecraft companion. Keep responses brief and Minecraft-focused."

// Config holds the Bedrock provider configuration.
type Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	Region       string        `mapstructure:"region"`
	AccessKey    string        `mapstructure:"access_key"`
	SecretKey    string        `mapstructure:"secret_key"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
	Endpoint     string        `mapstructure:"endpoint"` // optional override, e.g. a VPC endpoint
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns sensible defaults for Bedrock.
func DefaultConfig() Config {
	return Config{
		Region:       "us-east-1",
		Model:        "anthropic.claude-3-haiku-20240307-v1:0",
		MaxTokens:    512,
		Temperature:  0.7,
		SystemPrompt: DefaultSystemPrompt,
		Timeout:      90 * time.Second,
	}
}

// MarshalLogObject implements zapcore.ObjectMarshaler with credentials redacted.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("enabled", c.Enabled)
	enc.AddString("region", c.Region)
	enc.AddString("access_key", secret.Redact(c.AccessKey))
	enc.AddString("secret_key", secret.Redact(c.SecretKey))
	enc.AddString("model", c.Model)
	enc.AddInt("max_tokens", c.MaxTokens)
	enc.AddFloat64("temperature", c.Temperature)
	if c.Endpoint != "" {
		enc.AddString("endpoint", c.Endpoint)
	}
	return nil
}

// String implements fmt.Stringer with credentials redacted.
func (c Config) String() string {
	return fmt.Sprintf("bedrock{enabled=%t region=%s model=%s max_tokens=%d access_key=%s secret_key=%s}",
		c.Enabled, c.Region, c.Model, c.MaxTokens, secret.Redact(c.AccessKey), secret.Redact(c.SecretKey))
}
