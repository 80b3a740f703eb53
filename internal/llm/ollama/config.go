package ollama

// Config holds the Ollama provider configuration. Only the fields the
// configuration file carries today are modelled.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Model   string `mapstructure:"model"`
}

// DefaultConfig returns defaults for a local Ollama daemon.
func DefaultConfig() Config {
	return Config{
		URL:   "http://localhost:11434",
		Model: "llama2",
	}
}
