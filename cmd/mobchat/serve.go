package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/mobchat/internal/config"
	"github.com/HerbHall/mobchat/internal/llm"
	"github.com/HerbHall/mobchat/internal/registry"
	"github.com/HerbHall/mobchat/internal/server"
	"github.com/HerbHall/mobchat/internal/version"
	"github.com/HerbHall/mobchat/pkg/plugin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. Chat endpoints are mounted under /api/v1/llm;
the config file is watched and changes reselect the provider.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := bootstrap(false)
	if err != nil {
		return err
	}
	logger := env.logger
	defer func() { _ = logger.Sync() }()

	logger.Info("mobchat server starting", zap.String("version", version.Short()))
	if f := env.viper.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults", zap.String("component", "config"))
	}

	env.store.OnChange(func(snap *config.Snapshot) {
		level, err := config.ParseLevel(snap.Logging.Level)
		if err != nil {
			logger.Warn("ignoring invalid log level", zap.Error(err))
			return
		}
		env.level.SetLevel(level)
	})

	reg := registry.New(logger.Named("registry"))
	chat := llm.New(llm.WithStore(env.store))
	if err := reg.Register(chat); err != nil {
		return fmt.Errorf("register plugin: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("plugin validation failed: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := reg.InitAll(ctx, pluginDeps(config.New(env.viper), logger, reg)); err != nil {
		return fmt.Errorf("plugin initialization failed: %w", err)
	}
	if err := reg.StartAll(ctx); err != nil {
		return fmt.Errorf("plugin start failed: %w", err)
	}

	env.store.Watch()

	ready := func(context.Context) error {
		if _, ok := chat.Provider(); !ok {
			return errors.New("no chat provider available")
		}
		return nil
	}
	addr := env.store.Current().Server.Addr()
	srv := server.New(addr, reg, logger, ready)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("mobchat server ready", zap.String("addr", addr))

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			reg.StopAll(context.Background())
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	reg.StopAll(shutdownCtx)

	logger.Info("mobchat server stopped")
	return nil
}

// pluginDeps hands every plugin the whole configuration tree; the chat
// module reads providers.*, general.* and messages.* from the top level.
func pluginDeps(cfg plugin.Config, logger *zap.Logger, plugins plugin.PluginResolver) func(name string) plugin.Dependencies {
	return func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg,
			Logger:  logger.Named(name),
			Plugins: plugins,
		}
	}
}
