// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roverlink/roverlink/internal/config"
	"github.com/roverlink/roverlink/internal/logging"
)

var (
	configFile string

	// Populated by the root PersistentPreRunE before any command runs
	cfg    *config.Config
	logger = zap.NewNop()

	// logConsole is muted while the monitor dashboard owns the terminal
	logConsole = logging.NewConsole(os.Stderr)
)

var rootCmd = &cobra.Command{
	Use:   "roverlink",
	Short: "OpenRover serial protocol tool",
	Long: `Roverlink - A CLI tool for commanding and monitoring OpenRover-style
robot controllers over their serial framing protocol.

Reads telemetry frames (marker, element index, 2 data bytes, checksum),
sends command frames (three motor efforts, verb, argument), and records or
replays captured traffic.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 57600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the ROVERLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Every flag can also be set in a config file (--config or ROVERLINK_CONFIG)
or through ROVERLINK_* environment variables, e.g. ROVERLINK_SERIAL_PORT.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, toml or json)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringP("port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntP("baud", "b", 57600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().String("username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console or json)")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this rotating file")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	l, err := logging.New(c.Logging, logConsole)
	if err != nil {
		return err
	}

	cfg = c
	logger = l
	logger.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("serial_port", cfg.Serial.Port),
		zap.String("websocket_url", cfg.WebSocket.URL),
	)
	return nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	defer func() { _ = logger.Sync() }()

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}
