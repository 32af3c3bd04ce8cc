package config

import (
	"fmt"
	"time"

	"github.com/me/flowgraph/internal/logging"
	"github.com/me/flowgraph/internal/ordering"
)

// ServerConfig holds configuration for the flowgraph server.
type ServerConfig struct {
	Addr         string        // Listen address (default ":8080")
	LogLevel     string        // Log level: debug, info, warn, error
	LogFormat    string        // Log format: text, json
	DBPath       string        // SQLite database path (":memory:" for testing)
	ToolsPath    string        // Tool registry YAML; empty disables tool checks
	PollInterval time.Duration // Dispatch loop poll interval
	Layout       ordering.LayoutOptions
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		LogLevel:     "info",
		LogFormat:    "text",
		DBPath:       "flowgraph.db",
		PollInterval: 2 * time.Second,
		Layout:       ordering.DefaultLayout(),
	}
}

// Validate reports the first unusable setting.
func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.Layout.ColumnWidth <= 0 || c.Layout.RowHeight <= 0 {
		return fmt.Errorf("layout spacing must be positive")
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		return err
	}
	return nil
}
