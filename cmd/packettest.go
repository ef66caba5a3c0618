// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roverlink/roverlink/pkg/openrover"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid telemetry frame",
	Long: `Wait for a valid OpenRover telemetry frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any frame
that passes its checksum. Bytes before the first start marker and frames
with a bad checksum are skipped and counted.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing connectivity to a controller or WebSocket bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	timeout := time.Duration(packetTestTimeout) * time.Second
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	l, err := openLink(ctx)
	if err != nil {
		return withExitCode(2, "connection error: %w", err)
	}
	defer l.Close()

	fmt.Printf("Roverlink - Packet Test\n")
	fmt.Printf("Connection: %s\n", l.info)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid telemetry frame...\n\n")

	for {
		payload, err := l.proto.ReadOneRaw(ctx)
		if err == nil {
			reportPacket(l.proto, payload)
			return nil
		}

		switch {
		case openrover.IsRetryable(err):
			continue
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
			return withExitCode(1, "timeout after %s", timeout)
		case ctx.Err() != nil:
			return withExitCode(1, "interrupted")
		default:
			return withExitCode(2, "read error: %w", err)
		}
	}
}

func reportPacket(proto *openrover.Protocol, payload []byte) {
	snap := proto.Statistics().Snapshot()
	if snap.SkippedBytes > 0 || snap.ChecksumErrors > 0 {
		fmt.Printf("(skipped %d bytes and %d corrupt frames before sync)\n", snap.SkippedBytes, snap.ChecksumErrors)
	}

	frame := openrover.EncodeFrame(payload)
	fmt.Printf("SUCCESS: Received valid frame\n")
	fmt.Printf("  Raw: %s\n", openrover.FormatHex(frame))
	fmt.Printf("  Element: %d", payload[0])
	if d, ok := proto.Catalog().Lookup(payload[0]); ok {
		fmt.Printf(" (%s)", d.Name)
	}
	fmt.Printf("\n  Checksum: 0x%02X\n", frame[len(frame)-1])
}
