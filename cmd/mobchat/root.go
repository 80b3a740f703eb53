package main

import (
	"fmt"

	"github.com/HerbHall/mobchat/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "mobchat",
	Short: "Chat through whichever AI provider is configured",
	Long: `mobchat picks the first configured chat provider (OpenAI, then
AWS Bedrock) and exposes it over an HTTP API or from the terminal.

Configuration is read from mobchat.yaml in ., ./configs or /etc/mobchat,
and any key can be overridden with MOBCHAT_* environment variables:

  MOBCHAT_PROVIDERS_OPENAI_ENABLED=true
  MOBCHAT_PROVIDERS_OPENAI_API_KEY=sk-...`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log provider activity to stderr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}

// runtimeEnv bundles what every command needs after loading configuration.
type runtimeEnv struct {
	viper  *viper.Viper
	store  *config.Store
	logger *zap.Logger
	level  zap.AtomicLevel
}

// bootstrap loads configuration, builds the logger it describes and wraps
// both in a Store. Terminal commands pass quiet to log only warnings in
// console format unless --verbose is set.
func bootstrap(quiet bool) (*runtimeEnv, error) {
	v, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	snap, _, err := config.Decode(v)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logCfg := snap.Logging
	if quiet {
		logCfg.Format = "console"
		if !verbose {
			logCfg.Level = "warn"
		}
	}
	logger, level, err := config.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := config.NewStore(v, logger.Named("config"))
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return &runtimeEnv{viper: v, store: store, logger: logger, level: level}, nil
}
