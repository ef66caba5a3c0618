// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks frame counts and error rates. Safe for concurrent use.
//
// The counters only grow. Reset moves the baseline that Snapshot reports
// against; Totals always reports from creation.
type Statistics struct {
	mu        sync.RWMutex
	created   time.Time
	startTime time.Time
	baseline  StatisticsSnapshot

	frames          atomic.Uint64
	validFrames     atomic.Uint64
	checksumErrors  atomic.Uint64
	unknownElements atomic.Uint64
	transportErrors atomic.Uint64
	skippedBytes    atomic.Uint64
	commandsSent    atomic.Uint64
}

// StatisticsSnapshot is a point-in-time copy of the counters
type StatisticsSnapshot struct {
	Elapsed         time.Duration
	Frames          uint64 // frames read, valid or not
	ValidFrames     uint64
	ChecksumErrors  uint64
	UnknownElements uint64
	TransportErrors uint64
	SkippedBytes    uint64 // bytes discarded while scanning for a marker
	CommandsSent    uint64

	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{created: now, startTime: now}
}

// RecordFrame counts a frame that passed its checksum
func (s *Statistics) RecordFrame() {
	s.frames.Add(1)
	s.validFrames.Add(1)
}

// RecordChecksumError counts a frame that failed its checksum
func (s *Statistics) RecordChecksumError() {
	s.frames.Add(1)
	s.checksumErrors.Add(1)
}

// RecordUnknownElement counts a valid frame with an unregistered index
func (s *Statistics) RecordUnknownElement() {
	s.unknownElements.Add(1)
}

// RecordTransportError counts a failed stream operation
func (s *Statistics) RecordTransportError() {
	s.transportErrors.Add(1)
}

// RecordSkipped counts bytes discarded before a start marker
func (s *Statistics) RecordSkipped(n int) {
	if n > 0 {
		s.skippedBytes.Add(uint64(n))
	}
}

// RecordCommand counts a command frame written
func (s *Statistics) RecordCommand() {
	s.commandsSent.Add(1)
}

// Snapshot copies the counters since the last Reset and computes rates
func (s *Statistics) Snapshot() StatisticsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw := s.load()
	b := s.baseline
	return withRates(StatisticsSnapshot{
		Frames:          raw.Frames - b.Frames,
		ValidFrames:     raw.ValidFrames - b.ValidFrames,
		ChecksumErrors:  raw.ChecksumErrors - b.ChecksumErrors,
		UnknownElements: raw.UnknownElements - b.UnknownElements,
		TransportErrors: raw.TransportErrors - b.TransportErrors,
		SkippedBytes:    raw.SkippedBytes - b.SkippedBytes,
		CommandsSent:    raw.CommandsSent - b.CommandsSent,
	}, time.Since(s.startTime))
}

// Totals copies the counters since creation, ignoring Reset
func (s *Statistics) Totals() StatisticsSnapshot {
	return withRates(s.load(), time.Since(s.created))
}

func (s *Statistics) load() StatisticsSnapshot {
	return StatisticsSnapshot{
		Frames:          s.frames.Load(),
		ValidFrames:     s.validFrames.Load(),
		ChecksumErrors:  s.checksumErrors.Load(),
		UnknownElements: s.unknownElements.Load(),
		TransportErrors: s.transportErrors.Load(),
		SkippedBytes:    s.skippedBytes.Load(),
		CommandsSent:    s.commandsSent.Load(),
	}
}

func withRates(snap StatisticsSnapshot, elapsed time.Duration) StatisticsSnapshot {
	snap.Elapsed = elapsed
	if secs := elapsed.Seconds(); secs > 0 {
		snap.FrameRate = float64(snap.Frames) / secs
		snap.ErrorRate = float64(snap.Errors()) / secs
	}
	return snap
}

// Errors returns the total of all error counters
func (s StatisticsSnapshot) Errors() uint64 {
	return s.ChecksumErrors + s.UnknownElements + s.TransportErrors
}

// ValidPercent returns the share of frames that passed their checksum
func (s StatisticsSnapshot) ValidPercent() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.ValidFrames) * 100.0 / float64(s.Frames)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", snap.Elapsed.Seconds())
	fmt.Fprintf(&b, "Total Frames:    %8d\n", snap.Frames)
	fmt.Fprintf(&b, "Valid Frames:    %8d (%.1f%%)\n", snap.ValidFrames, snap.ValidPercent())

	if snap.ChecksumErrors > 0 {
		fmt.Fprintf(&b, "Checksum Errors: %8d\n", snap.ChecksumErrors)
	}
	if snap.UnknownElements > 0 {
		fmt.Fprintf(&b, "Unknown Elems:   %8d\n", snap.UnknownElements)
	}
	if snap.TransportErrors > 0 {
		fmt.Fprintf(&b, "Transport Errs:  %8d\n", snap.TransportErrors)
	}
	if snap.SkippedBytes > 0 {
		fmt.Fprintf(&b, "Skipped Bytes:   %8d\n", snap.SkippedBytes)
	}
	fmt.Fprintf(&b, "Commands Sent:   %8d\n", snap.CommandsSent)
	fmt.Fprintf(&b, "Frame Rate:      %8.1f frames/sec\n", snap.FrameRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", snap.ErrorRate)
	b.WriteString("================================\n")

	return b.String()
}

// Reset zeroes the counters reported by Snapshot and restarts the clock
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startTime = time.Now()
	s.baseline = s.load()
}
