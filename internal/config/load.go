package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/mobchat/internal/llm/bedrock"
	"github.com/HerbHall/mobchat/internal/llm/ollama"
	"github.com/HerbHall/mobchat/internal/llm/openai"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides:
// MOBCHAT_PROVIDERS_OPENAI_API_KEY sets providers.openai.api_key.
const EnvPrefix = "MOBCHAT"

// Load reads configuration from file and environment variables. A missing
// config file is not an error; defaults apply.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mobchat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mobchat")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// SetDefaults registers a default for every recognized key. Environment
// overrides only reach Unmarshal for keys Viper knows about.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)

	oa := openai.DefaultConfig()
	v.SetDefault("providers.openai.enabled", false)
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.model", oa.Model)
	v.SetDefault("providers.openai.max_tokens", oa.MaxTokens)
	v.SetDefault("providers.openai.temperature", oa.Temperature)
	v.SetDefault("providers.openai.base_url", oa.BaseURL)
	v.SetDefault("providers.openai.system_prompt", "")
	v.SetDefault("providers.openai.connect_timeout", oa.ConnectTimeout.String())
	v.SetDefault("providers.openai.read_timeout", oa.ReadTimeout.String())
	v.SetDefault("providers.openai.write_timeout", oa.WriteTimeout.String())

	br := bedrock.DefaultConfig()
	v.SetDefault("providers.bedrock.enabled", false)
	v.SetDefault("providers.bedrock.region", br.Region)
	v.SetDefault("providers.bedrock.access_key", "")
	v.SetDefault("providers.bedrock.secret_key", "")
	v.SetDefault("providers.bedrock.model", br.Model)
	v.SetDefault("providers.bedrock.max_tokens", br.MaxTokens)
	v.SetDefault("providers.bedrock.temperature", br.Temperature)
	v.SetDefault("providers.bedrock.endpoint", "")
	v.SetDefault("providers.bedrock.system_prompt", "")
	v.SetDefault("providers.bedrock.timeout", br.Timeout.String())

	ol := ollama.DefaultConfig()
	v.SetDefault("providers.ollama.enabled", false)
	v.SetDefault("providers.ollama.url", ol.URL)
	v.SetDefault("providers.ollama.model", ol.Model)

	v.SetDefault("general.max_messages_per_user", DefaultMaxMessagesPerUser)
	v.SetDefault("general.system_prompt", "")
	v.SetDefault("general.bot_name", DefaultBotName)

	v.SetDefault("messages.no_provider", DefaultNoProviderMessage)
	v.SetDefault("messages.error", DefaultErrorMessage)
}
