// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roverlink/roverlink/pkg/openrover"
)

var (
	rawLogHex bool

	rawErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	rawWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	rawDimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display telemetry frames in human-readable format",
	Long: `Continuously decode and display OpenRover telemetry frames as they arrive.

Each valid frame is printed with a timestamp, the element name and index, and
its decoded value. Frames failing their checksum and frames for unregistered
elements are printed as errors and counted; reading continues with the next
start marker.

Statistics are printed on exit (Ctrl+C).`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print the raw payload bytes")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	l, err := openLink(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	fmt.Printf("Roverlink - Raw Telemetry Log\n")
	fmt.Printf("Connection: %s\n", l.info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	defer func() {
		fmt.Printf("\n%s\n", l.proto.Statistics())
	}()

	for {
		e, err := l.proto.ReadOne(ctx)
		now := time.Now()
		if err != nil {
			if isShutdown(ctx, err) {
				return nil
			}

			var unknown *openrover.UnknownElementError
			switch {
			case errors.Is(err, openrover.ErrChecksum):
				fmt.Println(rawErrStyle.Render(fmt.Sprintf("[%s] [ERROR] %v", now.Format("15:04:05.000"), err)))
				continue
			case errors.As(err, &unknown):
				fmt.Println(rawWarnStyle.Render(fmt.Sprintf("[%s] [UNKNOWN] element %d data % X",
					now.Format("15:04:05.000"), unknown.Index, unknown.Payload[1:])))
				continue
			}

			logger.Error("read failed", zap.Error(err))
			return err
		}

		fmt.Print(openrover.FormatElement(now, e))
		if rawLogHex {
			fmt.Println(rawDimStyle.Render("  raw: " + openrover.FormatHex(e.Raw[:])))
		}
	}
}
