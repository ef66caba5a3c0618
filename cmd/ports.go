// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/roverlink/roverlink/pkg/openrover"
)

var (
	portsProbe   bool
	portsTimeout time.Duration
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and optionally probe them for a controller",
	Long: `List the serial ports present on this machine.

With --probe, each port is opened at --baud and sent a GET_DATA request for
the firmware version. Ports answering with a valid frame are reported as
controllers.

Exit codes (with --probe):
  0 - At least one controller found
  1 - No controller answered`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVar(&portsProbe, "probe", false, "Ask each port for the controller firmware version")
	portsCmd.Flags().DurationVar(&portsTimeout, "timeout", 2*time.Second, "Time to wait for each probe reply")
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}

	if len(ports) == 0 {
		fmt.Printf("No serial ports found\n")
		if portsProbe {
			return withExitCode(1, "no serial ports")
		}
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	found := 0
	for _, p := range ports {
		fmt.Printf("%s", p.Name)
		if p.IsUSB {
			fmt.Printf("  USB %s:%s", p.VID, p.PID)
			if p.SerialNumber != "" {
				fmt.Printf(" serial=%s", p.SerialNumber)
			}
			if p.Product != "" {
				fmt.Printf(" (%s)", p.Product)
			}
		}
		fmt.Println()

		if !portsProbe {
			continue
		}

		version, err := probePort(ctx, p.Name)
		if err != nil {
			fmt.Printf("  no controller: %v\n", err)
			logger.Debug("probe failed", zap.String("port", p.Name), zap.Error(err))
			continue
		}
		found++
		fmt.Printf("  controller firmware %s\n", openrover.FormatValue(version.Value))
	}

	if portsProbe {
		fmt.Printf("\n--- Probe summary ---\n")
		fmt.Printf("Controllers found: %d\n", found)
		if found == 0 {
			return withExitCode(1, "no controller answered")
		}
	}
	return nil
}

// probePort requests the firmware version on portName
func probePort(ctx context.Context, portName string) (openrover.Element, error) {
	conn, err := OpenSerialConnection(portName, cfg.Serial.Baud, cfg.Serial.ReadTimeout)
	if err != nil {
		return openrover.Element{}, err
	}
	defer conn.Close()

	proto := openrover.NewProtocol(openrover.NewStream(conn),
		openrover.WithLogger(logger.Named("probe").With(zap.String("port", portName))))

	ctx, cancel := context.WithTimeout(ctx, portsTimeout)
	defer cancel()

	return proto.Request(ctx, openrover.ElemFirmwareVersion)
}
