// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roverlink/roverlink/pkg/openrover"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Decode and print a capture file",
	Long: `Decode a capture file written by "record" or "drive --capture".

Inbound frames are decoded through the element catalog; outbound frames are
decoded as commands. Corrupt frames are shown with the error recorded at
capture time. A summary follows the last record.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	summary, err := replayCapture(cmd.OutOrStdout(), openrover.NewCaptureReader(f), openrover.DefaultCatalog())
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", summary)
	return err
}

// replaySummary counts replayed records
type replaySummary struct {
	Sessions int
	Inbound  int
	Outbound int
	Corrupt  int
	Unknown  int
}

func (s replaySummary) String() string {
	return fmt.Sprintf("Sessions: %d\nRecords: %d inbound, %d outbound, %d corrupt, %d unknown element",
		s.Sessions, s.Inbound, s.Outbound, s.Corrupt, s.Unknown)
}

// replayCapture prints every record in r to w
func replayCapture(w io.Writer, r *openrover.CaptureReader, catalog *openrover.Catalog) (replaySummary, error) {
	var sum replaySummary
	format := openrover.ByteEffort{}
	session := ""

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return sum, nil
		}
		if err != nil {
			return sum, err
		}

		if sum.Sessions == 0 || rec.Session != session {
			session = rec.Session
			sum.Sessions++
			if session != "" {
				fmt.Fprintf(w, "--- session %s ---\n", session)
			}
		}

		ts := rec.Time.Local().Format("15:04:05.000")

		if rec.Direction == openrover.Outbound {
			sum.Outbound++
			c, err := openrover.DecodeCommand(format, rec.Raw)
			if err != nil {
				sum.Corrupt++
				fmt.Fprintf(w, "[%s] TX [ERROR] %v: %s\n", ts, err, openrover.FormatHex(rec.Raw))
				continue
			}
			fmt.Fprintf(w, "[%s] TX %s\n", ts, openrover.FormatCommand(c))
			continue
		}

		sum.Inbound++
		if rec.Error != "" {
			sum.Corrupt++
			fmt.Fprintf(w, "[%s] RX [ERROR] %s\n", ts, rec.Error)
			continue
		}

		payload, err := openrover.DecodeFrame(rec.Raw)
		if err != nil {
			sum.Corrupt++
			fmt.Fprintf(w, "[%s] RX [ERROR] %v\n", ts, err)
			continue
		}

		e, err := catalog.DecodeElement(payload)
		if err != nil {
			if errors.Is(err, openrover.ErrUnknownElement) {
				sum.Unknown++
			}
			fmt.Fprintf(w, "[%s] RX [UNKNOWN] %v\n", ts, err)
			continue
		}
		fmt.Fprintf(w, "RX %s", openrover.FormatElement(rec.Time.Local(), e))
	}
}
