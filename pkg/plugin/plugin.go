// Package plugin provides the public SDK types for mobchat modules.
// Every module hosted by the server implements Plugin; the optional
// HealthChecker and HTTPProvider interfaces expose status and routes.
package plugin

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// API version constants for plugin compatibility checking.
const (
	APIVersionMin     = 1 // Oldest Plugin API version this server supports
	APIVersionCurrent = 1 // Current Plugin API version
)

// Plugin defines the interface that all mobchat modules must implement.
type Plugin interface {
	// Info returns the plugin's metadata.
	Info() PluginInfo

	// Init initializes the plugin with its dependencies.
	Init(ctx context.Context, deps Dependencies) error

	// Start begins the plugin's background operations.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the plugin.
	Stop(ctx context.Context) error
}

// PluginInfo contains plugin metadata.
type PluginInfo struct {
	Name        string // Unique identifier, also the route prefix: "llm"
	Version     string // Semantic version string
	Description string // Human-readable summary
	Required    bool   // If true, server refuses to start without this plugin
	APIVersion  int    // Plugin API version targeted (currently 1)
}

// Dependencies provides controlled access to shared services.
// Injected by the registry during Init.
type Dependencies struct {
	Config  Config      // Whole application config; plugins read their own keys
	Logger  *zap.Logger // Named logger for this plugin
	Plugins PluginResolver
}

// HealthChecker is implemented by plugins that report their own health.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// HTTPProvider is implemented by plugins that expose HTTP routes. Paths
// are relative to the plugin's mount point.
type HTTPProvider interface {
	Routes() []Route
}

// Route represents an HTTP route exposed by a plugin.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// HealthStatus represents a plugin's health report.
type HealthStatus struct {
	Status  string            `json:"status"` // "healthy", "degraded", "unhealthy"
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Config abstracts configuration access. Wraps Viper today, replaceable later.
type Config interface {
	Unmarshal(target any) error
	Get(key string) any
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	IsSet(key string) bool
	Sub(key string) Config
}

// PluginResolver allows plugins to locate other plugins by name.
type PluginResolver interface {
	Resolve(name string) (Plugin, bool)
}
