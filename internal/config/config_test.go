// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 57600, cfg.Serial.Baud)
	assert.Equal(t, 100*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.ErrorIs(t, cfg.Validate(), ErrNoConnection)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rover.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serial:
  port: /dev/ttyUSB0
  baud: 9600
logging:
  level: debug
metrics:
  addr: ":9100"
`), 0o644))

	t.Setenv("ROVERLINK_SERIAL_READTIMEOUT", "250ms")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("baud", 57600, "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--baud", "115200"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud, "changed flag wins over file")
	assert.Equal(t, "debug", cfg.Logging.Level, "unchanged flag keeps file value")
	assert.Equal(t, 250*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{Serial: SerialConfig{Baud: 57600, ReadTimeout: time.Second}}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"serial", func(c *Config) { c.Serial.Port = "/dev/ttyUSB0" }, false},
		{"websocket", func(c *Config) { c.WebSocket.URL = "ws://bridge/rover" }, false},
		{"none", func(c *Config) {}, true},
		{"both", func(c *Config) { c.Serial.Port = "x"; c.WebSocket.URL = "ws://y" }, true},
		{"bad baud", func(c *Config) { c.Serial.Port = "x"; c.Serial.Baud = 0 }, true},
		{"bad timeout", func(c *Config) { c.Serial.Port = "x"; c.Serial.ReadTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
