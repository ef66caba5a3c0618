// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/roverlink/roverlink/pkg/openrover"
)

var (
	driveLeft     float64
	driveRight    float64
	driveFlipper  float64
	driveVerb     string
	driveArg      uint8
	driveRate     float64
	driveDuration time.Duration
	driveOnce     bool
	driveCapture  string
)

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Send motor command frames",
	Long: `Send command frames carrying three motor efforts, a verb and an argument.

Efforts range from -1 (full reverse) through 0 (stop) to +1 (full forward)
and are clamped to that range. Frames are repeated at --rate for --duration,
then a neutral NOP frame stops the motors. With --once a single frame is sent
and the motors are left as commanded.

Examples:
  roverlink drive -p /dev/ttyUSB0 --left 0.5 --right 0.5 --duration 2s
  roverlink drive -p /dev/ttyUSB0 --verb set_drive_mode --arg 1 --once
  roverlink drive -p /dev/ttyUSB0 --verb restart --once`,
	RunE: runDrive,
}

func init() {
	rootCmd.AddCommand(driveCmd)
	driveCmd.Flags().Float64Var(&driveLeft, "left", 0, "Left motor effort (-1..1)")
	driveCmd.Flags().Float64Var(&driveRight, "right", 0, "Right motor effort (-1..1)")
	driveCmd.Flags().Float64Var(&driveFlipper, "flipper", 0, "Flipper motor effort (-1..1)")
	driveCmd.Flags().StringVar(&driveVerb, "verb", "nop", "Command verb (nop, get_data, set_fan_speed, restart, set_drive_mode, flipper_calibrate)")
	driveCmd.Flags().Uint8Var(&driveArg, "arg", 0, "Command argument byte")
	driveCmd.Flags().Float64Var(&driveRate, "rate", 10, "Frames per second")
	driveCmd.Flags().DurationVar(&driveDuration, "duration", time.Second, "How long to keep sending")
	driveCmd.Flags().BoolVar(&driveOnce, "once", false, "Send a single frame and exit")
	driveCmd.Flags().StringVar(&driveCapture, "capture", "", "Append sent frames to this capture file")
}

func runDrive(cmd *cobra.Command, args []string) error {
	verb, err := openrover.ParseCommandVerb(driveVerb)
	if err != nil {
		return err
	}
	if driveRate <= 0 {
		return fmt.Errorf("--rate must be positive")
	}

	c := openrover.Command{
		Left:    driveLeft,
		Right:   driveRight,
		Flipper: driveFlipper,
		Verb:    verb,
		Arg:     driveArg,
	}

	ctx, cancel := signalContext()
	defer cancel()

	l, err := openLink(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	send := l.proto.Send
	if driveCapture != "" {
		f, err := os.OpenFile(driveCapture, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open capture: %w", err)
		}
		defer f.Close()
		send = capturingSender(l.proto, openrover.NewCaptureWriter(f), uuid.NewString())
	}

	fmt.Printf("Roverlink - Drive\n")
	fmt.Printf("Connection: %s\n", l.info)
	fmt.Printf("Command: %s\n\n", openrover.FormatCommand(c))

	if driveOnce {
		return send(ctx, c)
	}

	sent, err := driveLoop(ctx, send, c, driveRate, driveDuration)

	// Stop even when interrupted
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if stopErr := send(stopCtx, openrover.StopCommand); stopErr != nil {
		logger.Error("stop frame failed", zap.Error(stopErr))
	}

	fmt.Printf("Sent %d frames, then stop\n", sent)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

type sendFunc func(context.Context, openrover.Command) error

// driveLoop repeats c at hz frames per second until duration elapses or ctx
// ends
func driveLoop(ctx context.Context, send sendFunc, c openrover.Command, hz float64, duration time.Duration) (int, error) {
	limiter := rate.NewLimiter(rate.Limit(hz), 1)

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	sent := 0
	for {
		// Wait fails early when the next slot falls past the deadline
		if err := limiter.Wait(runCtx); err != nil {
			return sent, ctx.Err()
		}
		if err := send(ctx, c); err != nil {
			return sent, err
		}
		sent++
	}
}

// capturingSender sends through proto and records each sent frame, encoded
// with the protocol's own effort format
func capturingSender(proto *openrover.Protocol, w *openrover.CaptureWriter, session string) sendFunc {
	format := proto.EffortFormat()
	return func(ctx context.Context, c openrover.Command) error {
		if err := proto.Send(ctx, c); err != nil {
			return err
		}
		return w.Write(openrover.CaptureRecord{
			Time:      time.Now(),
			Direction: openrover.Outbound,
			Raw:       openrover.EncodeCommand(format, c),
			Session:   session,
		})
	}
}
