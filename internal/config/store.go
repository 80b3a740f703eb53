package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Store holds the current Snapshot and swaps it atomically on reload.
// Readers call Current and keep the returned pointer for one whole
// operation, so a concurrent reload never produces a torn view.
type Store struct {
	v      *viper.Viper
	logger *zap.Logger
	cur    atomic.Pointer[Snapshot]

	mu        sync.Mutex // serializes Reload
	listeners []func(*Snapshot)
}

// NewStore decodes the initial snapshot from v.
func NewStore(v *viper.Viper, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{v: v, logger: logger}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active snapshot. Never nil after NewStore succeeds.
func (s *Store) Current() *Snapshot {
	return s.cur.Load()
}

// OnChange registers fn to run after every successful reload.
func (s *Store) OnChange(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload re-reads the config file (if any), publishes the new snapshot and
// notifies listeners. On failure the previous snapshot stays active.
func (s *Store) Reload() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.v.ConfigFileUsed() != "" {
		if err := s.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("re-reading config: %w", err)
		}
	}

	snap, warnings, err := Decode(s.v)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		s.logger.Warn("config corrected", zap.String("detail", w))
	}

	s.cur.Store(snap)
	s.logger.Info("configuration loaded",
		zap.Bool("openai_enabled", snap.Providers.OpenAI.Enabled),
		zap.Bool("bedrock_enabled", snap.Providers.Bedrock.Enabled),
		zap.Bool("ollama_enabled", snap.Providers.Ollama.Enabled),
		zap.Int("max_messages_per_user", snap.General.MaxMessagesPerUser),
	)

	for _, fn := range s.listeners {
		fn(snap)
	}
	return snap, nil
}

// Watch reloads the store whenever the config file changes on disk.
// It is a no-op when no config file is in use.
func (s *Store) Watch() {
	if s.v.ConfigFileUsed() == "" {
		s.logger.Debug("no config file in use, not watching")
		return
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		s.logger.Info("config file changed", zap.String("file", e.Name))
		if _, err := s.Reload(); err != nil {
			s.logger.Error("config reload failed; keeping previous configuration", zap.Error(err))
		}
	})
	s.v.WatchConfig()
}
