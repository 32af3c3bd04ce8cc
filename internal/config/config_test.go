package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultServerConfig_Valid(t *testing.T) {
	if err := DefaultServerConfig().Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		want   string
	}{
		{"no addr", func(c *ServerConfig) { c.Addr = "" }, "listen address"},
		{"no db", func(c *ServerConfig) { c.DBPath = "" }, "database path"},
		{"zero poll", func(c *ServerConfig) { c.PollInterval = 0 }, "poll interval"},
		{"negative poll", func(c *ServerConfig) { c.PollInterval = -time.Second }, "poll interval"},
		{"flat layout", func(c *ServerConfig) { c.Layout.RowHeight = 0 }, "layout spacing"},
		{"bad format", func(c *ServerConfig) { c.LogFormat = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
