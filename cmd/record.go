// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roverlink/roverlink/pkg/openrover"
)

var (
	recordOut      string
	recordDuration time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture telemetry frames to a file",
	Long: `Capture every telemetry frame, including frames that fail their checksum,
to a CBOR capture file for later analysis with "replay".

Recording stops on Ctrl+C or after --duration (0 records until interrupted).`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "", "Capture file to write (required)")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Stop after this long")
	_ = recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	if recordDuration > 0 {
		var cancelDuration context.CancelFunc
		ctx, cancelDuration = context.WithTimeout(ctx, recordDuration)
		defer cancelDuration()
	}

	f, err := os.Create(recordOut)
	if err != nil {
		return fmt.Errorf("create capture: %w", err)
	}
	defer f.Close()

	l, err := openLink(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	fmt.Printf("Roverlink - Record\n")
	fmt.Printf("Connection: %s\n", l.info)
	fmt.Printf("Writing: %s\n", recordOut)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	session := uuid.NewString()
	logger.Info("recording", zap.String("session", session), zap.String("file", recordOut))

	n, err := recordFrames(ctx, l.proto, openrover.NewCaptureWriter(f), session)
	fmt.Printf("Recorded %d frames\n%s\n", n, l.proto.Statistics())
	if err != nil && !isShutdown(ctx, err) {
		return err
	}
	return f.Sync()
}

// recordFrames writes one record per frame read until a non-checksum error
func recordFrames(ctx context.Context, proto *openrover.Protocol, w *openrover.CaptureWriter, session string) (int, error) {
	n := 0
	for {
		payload, err := proto.ReadOneRaw(ctx)
		if err != nil && !errors.Is(err, openrover.ErrChecksum) {
			return n, err
		}
		if err != nil {
			logger.Debug("recording corrupt frame", zap.Error(err))
		}

		rec := openrover.InboundRecord(time.Now(), payload, err)
		rec.Session = session
		if werr := w.Write(rec); werr != nil {
			return n, werr
		}
		n++
	}
}
