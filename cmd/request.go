// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roverlink/roverlink/pkg/openrover"
)

var (
	requestRetries int
	requestTimeout time.Duration
)

var requestCmd = &cobra.Command{
	Use:   "request <element>...",
	Short: "Request data elements from the controller",
	Long: `Send a GET_DATA command for each element and print the reply.

Elements may be given by index (e.g. 40) or by name (e.g. "release version").
Run "request list" to print the catalog.

Frames for other elements are skipped while waiting. A reply failing its
checksum triggers a new request, up to --retries times.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.Flags().IntVar(&requestRetries, "retries", 3, "Retries per element after a checksum failure")
	requestCmd.Flags().DurationVar(&requestTimeout, "timeout", 2*time.Second, "Time to wait for each reply")
}

func runRequest(cmd *cobra.Command, args []string) error {
	catalog := openrover.DefaultCatalog()

	if len(args) == 1 && args[0] == "list" {
		for _, i := range catalog.Indexes() {
			d, _ := catalog.Lookup(i)
			fmt.Printf("%3d  %s\n", i, d.Name)
		}
		return nil
	}

	indexes := make([]byte, 0, len(args))
	for _, a := range args {
		i, err := resolveElement(catalog, a)
		if err != nil {
			return err
		}
		indexes = append(indexes, i)
	}

	ctx, cancel := signalContext()
	defer cancel()

	l, err := openLink(ctx, openrover.WithCatalog(catalog))
	if err != nil {
		return err
	}
	defer l.Close()

	for _, i := range indexes {
		e, err := requestWithRetry(ctx, l.proto, i, requestRetries, requestTimeout)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		fmt.Print(openrover.FormatElement(time.Now(), e))
	}
	return nil
}

// requestWithRetry repeats Request while the reply fails its checksum
func requestWithRetry(ctx context.Context, proto *openrover.Protocol, index byte, retries int, timeout time.Duration) (openrover.Element, error) {
	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		e, err := proto.Request(attemptCtx, index)
		cancel()

		if err == nil || !openrover.IsRetryable(err) || attempt >= retries {
			return e, err
		}
		logger.Warn("retrying request",
			zap.Uint8("element", index),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
}

// resolveElement accepts an element index or a catalog name
func resolveElement(catalog *openrover.Catalog, arg string) (byte, error) {
	if n, err := strconv.ParseUint(arg, 10, 8); err == nil {
		return byte(n), nil
	}

	want := strings.ToLower(strings.TrimSpace(arg))
	for _, i := range catalog.Indexes() {
		d, _ := catalog.Lookup(i)
		if strings.ToLower(d.Name) == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown element %q (run \"request list\")", arg)
}
