// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/roverlink/roverlink/internal/metrics"
	"github.com/roverlink/roverlink/pkg/openrover"
)

var monitorPoll time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of controller telemetry",
	Long: `Display the latest value of every data element, link statistics and an
event log in a terminal dashboard.

With --poll the controller is asked for each catalog element in turn, one
GET_DATA request per interval. Without it the dashboard only shows what the
controller sends on its own.

With --metrics-addr the link statistics and element values are also served
in Prometheus format at /metrics.

Keys: q quit, r reset statistics, s send a stop frame.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorPoll, "poll", 100*time.Millisecond, "Interval between GET_DATA requests (0 disables polling)")
	monitorCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	catalog := openrover.DefaultCatalog()
	stats := openrover.NewStatistics()

	l, err := openLink(ctx, openrover.WithCatalog(catalog), openrover.WithStatistics(stats))
	if err != nil {
		return err
	}
	defer l.Close()

	actions := monitorActions{
		stop: func() error {
			sendCtx, sendCancel := context.WithTimeout(ctx, time.Second)
			defer sendCancel()
			return l.proto.Send(sendCtx, openrover.StopCommand)
		},
	}

	m := newMonitorModel(l.info, stats, catalog, actions)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// The dashboard owns the terminal; failures go to its event log and the
	// log file instead of stderr.
	unmute := logConsole.Mute()
	report := func(err error) {
		p.Send(logEventMsg{err: err, at: time.Now()})
	}

	var elementMetrics *metrics.ElementMetrics
	if cfg.Metrics.Addr != "" {
		reg := metrics.NewRegistry()
		reg.MustRegister(metrics.NewProtocolCollector(stats))
		elementMetrics = metrics.NewElementMetrics(reg)

		srv := serveMetrics(cfg.Metrics.Addr, cfg.Metrics.Path, metrics.Handler(reg), report)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	go monitorReader(ctx, l.proto, p, elementMetrics)
	if monitorPoll > 0 {
		go func() {
			if err := pollElements(ctx, l.proto, catalog.Indexes(), monitorPoll); err != nil {
				logger.Warn("poll failed", zap.Error(err))
				report(fmt.Errorf("poll stopped: %w", err))
			}
		}()
	}

	_, err = p.Run()
	cancel()
	unmute()
	if errors.Is(err, tea.ErrInterrupted) || (errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, tea.ErrProgramPanic)) {
		err = nil
	}

	fmt.Printf("%s\n", stats)
	return err
}

// monitorReader forwards every read result to the program until the link
// fails
func monitorReader(ctx context.Context, proto *openrover.Protocol, p *tea.Program, em *metrics.ElementMetrics) {
	for {
		e, err := proto.ReadOne(ctx)
		now := time.Now()
		switch {
		case err == nil:
			if em != nil {
				em.Observe(e)
			}
			p.Send(elementMsg{element: e, at: now})
		case openrover.IsRetryable(err), errors.Is(err, openrover.ErrUnknownElement):
			p.Send(readErrorMsg{err: err, at: now})
		case isShutdown(ctx, err):
			p.Send(linkClosedMsg{})
			return
		default:
			logger.Error("monitor read failed", zap.Error(err))
			p.Send(linkClosedMsg{err: err})
			return
		}
	}
}

// pollElements requests each index in turn, one per interval. It returns nil
// when ctx ends and the send error otherwise.
func pollElements(ctx context.Context, proto *openrover.Protocol, indexes []byte, interval time.Duration) error {
	if len(indexes) == 0 {
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for i := 0; ; i = (i + 1) % len(indexes) {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		err := proto.Send(ctx, openrover.Command{Verb: openrover.VerbGetData, Arg: indexes[i]})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("request element %d: %w", indexes[i], err)
		}
	}
}

// serveMetrics starts the metrics server; onErr receives a failure to listen
func serveMetrics(addr, path string, h http.Handler, onErr func(error)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr), zap.String("path", path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
			onErr(fmt.Errorf("metrics server: %w", err))
		}
	}()
	return srv
}
