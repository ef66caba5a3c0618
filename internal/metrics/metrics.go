// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

// Package metrics exposes link statistics and telemetry values to Prometheus
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roverlink/roverlink/pkg/openrover"
)

const namespace = "roverlink"

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler for reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// ProtocolCollector reads counters from openrover.Statistics at scrape time.
// It exports lifetime totals, so a display reset never moves a counter back.
type ProtocolCollector struct {
	stats *openrover.Statistics

	frames          *prometheus.Desc
	checksumErrors  *prometheus.Desc
	unknownElements *prometheus.Desc
	transportErrors *prometheus.Desc
	skippedBytes    *prometheus.Desc
	commandsSent    *prometheus.Desc
}

// NewProtocolCollector creates a collector for stats
func NewProtocolCollector(stats *openrover.Statistics) *ProtocolCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &ProtocolCollector{
		stats:           stats,
		frames:          desc("frames_total", "Telemetry frames read, by checksum result.", "result"),
		checksumErrors:  desc("checksum_errors_total", "Frames rejected by checksum."),
		unknownElements: desc("unknown_elements_total", "Valid frames with an unregistered element index."),
		transportErrors: desc("transport_errors_total", "Failed reads or writes on the byte stream."),
		skippedBytes:    desc("skipped_bytes_total", "Bytes discarded while scanning for a start marker."),
		commandsSent:    desc("commands_sent_total", "Command frames written."),
	}
}

// Describe implements prometheus.Collector
func (c *ProtocolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.frames
	ch <- c.checksumErrors
	ch <- c.unknownElements
	ch <- c.transportErrors
	ch <- c.skippedBytes
	ch <- c.commandsSent
}

// Collect implements prometheus.Collector
func (c *ProtocolCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Totals()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.frames, snap.ValidFrames, "valid")
	counter(c.frames, snap.ChecksumErrors, "corrupt")
	counter(c.checksumErrors, snap.ChecksumErrors)
	counter(c.unknownElements, snap.UnknownElements)
	counter(c.transportErrors, snap.TransportErrors)
	counter(c.skippedBytes, snap.SkippedBytes)
	counter(c.commandsSent, snap.CommandsSent)
}

// ElementMetrics holds the most recent numeric value of each element
type ElementMetrics struct {
	Value   *prometheus.GaugeVec
	Updates *prometheus.CounterVec
}

// NewElementMetrics registers element gauges on reg
func NewElementMetrics(reg prometheus.Registerer) *ElementMetrics {
	m := &ElementMetrics{
		Value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "element_value",
			Help:      "Last reported value of a data element, in its natural unit.",
		}, []string{"index", "name"}),
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "element_updates_total",
			Help:      "Data element reports received.",
		}, []string{"index", "name"}),
	}
	reg.MustRegister(m.Value, m.Updates)
	return m
}

// Observe records e. Values with no numeric reading only bump the counter.
func (m *ElementMetrics) Observe(e openrover.Element) {
	labels := prometheus.Labels{"index": indexLabel(e.Index), "name": e.Name}
	m.Updates.With(labels).Inc()
	if v, ok := NumericValue(e.Value); ok {
		m.Value.With(labels).Set(v)
	}
}

func indexLabel(i byte) string {
	return strconv.Itoa(int(i))
}

// NumericValue converts a decoded element value to a float
func NumericValue(v any) (float64, bool) {
	switch v := v.(type) {
	case uint16:
		return float64(v), true
	case int16:
		return float64(v), true
	case openrover.Measurement:
		return v.Value, true
	case openrover.Flags:
		return float64(v), true
	case openrover.ChargerState:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
