// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Protocol reads telemetry frames from and writes command frames to a
// ByteStream.
//
// A telemetry read takes several stream operations (marker scan, then the
// frame body), so reads hold an exclusive lock for the whole sequence.
// Waiters acquire the lock in the order they asked for it. Writes go out as
// a single stream write and take no lock.
type Protocol struct {
	stream  ByteStream
	catalog *Catalog
	format  EffortFormat
	stats   *Statistics
	logger  *zap.Logger

	readLock *semaphore.Weighted
}

// Option configures a Protocol
type Option func(*Protocol)

// WithCatalog sets the data element catalog used by ReadOne
func WithCatalog(c *Catalog) Option {
	return func(p *Protocol) { p.catalog = c }
}

// WithEffortFormat sets the motor effort packing used by Write
func WithEffortFormat(f EffortFormat) Option {
	return func(p *Protocol) { p.format = f }
}

// WithStatistics records frame and error counts into s
func WithStatistics(s *Statistics) Option {
	return func(p *Protocol) { p.stats = s }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(l *zap.Logger) Option {
	return func(p *Protocol) { p.logger = l }
}

// NewProtocol creates a Protocol over stream
func NewProtocol(stream ByteStream, opts ...Option) *Protocol {
	p := &Protocol{
		stream:   stream,
		catalog:  DefaultCatalog(),
		format:   ByteEffort{},
		stats:    NewStatistics(),
		logger:   zap.NewNop(),
		readLock: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Statistics returns the counters this protocol records into
func (p *Protocol) Statistics() *Statistics {
	return p.stats
}

// Catalog returns the element catalog used by ReadOne
func (p *Protocol) Catalog() *Catalog {
	return p.catalog
}

// EffortFormat returns the motor effort packing used by Write and Send
func (p *Protocol) EffortFormat() EffortFormat {
	return p.format
}

// ReadOneRaw reads the next frame and returns its 3 payload bytes.
//
// Bytes before the next start marker are discarded, which resynchronizes
// after corruption or a mid-frame attach. A frame failing its checksum
// yields a *ChecksumError; its bytes stay consumed and the next call resumes
// scanning.
func (p *Protocol) ReadOneRaw(ctx context.Context) ([]byte, error) {
	if err := p.readLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.readLock.Release(1)

	skipped, err := p.stream.ReadUntil(ctx, StartByte)
	if err != nil {
		return nil, p.readFailed("marker scan", err)
	}
	p.stats.RecordSkipped(len(skipped) - 1)

	body, err := p.stream.ReadExactly(ctx, FrameSize-1)
	if err != nil {
		return nil, p.readFailed("frame body", err)
	}

	frame := make([]byte, 0, FrameSize)
	frame = append(frame, StartByte)
	frame = append(frame, body...)

	payload, err := DecodeFrame(frame)
	if err != nil {
		p.stats.RecordChecksumError()
		p.logger.Debug("discarding frame", zap.Binary("raw", frame), zap.Error(err))
		return nil, err
	}
	p.stats.RecordFrame()

	if len(skipped) > 1 {
		p.logger.Debug("resynchronized", zap.Int("skipped_bytes", len(skipped)-1))
	}
	return payload, nil
}

func (p *Protocol) readFailed(stage string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		p.stats.RecordTransportError()
		p.logger.Warn("read failed", zap.String("stage", stage), zap.Error(err))
	}
	return err
}

// ReadOne reads the next frame and decodes it through the catalog.
// An unregistered index yields an *UnknownElementError.
func (p *Protocol) ReadOne(ctx context.Context) (Element, error) {
	payload, err := p.ReadOneRaw(ctx)
	if err != nil {
		return Element{}, err
	}

	e, err := p.catalog.DecodeElement(payload)
	if errors.Is(err, ErrUnknownElement) {
		p.stats.RecordUnknownElement()
	}
	return e, err
}

// Write sends one command frame. It does not wait for any response; the
// controller answers, if at all, with later telemetry frames.
func (p *Protocol) Write(ctx context.Context, left, right, flipper float64, verb CommandVerb, arg byte) error {
	return p.Send(ctx, Command{Left: left, Right: right, Flipper: flipper, Verb: verb, Arg: arg})
}

// Send writes c as one command frame
func (p *Protocol) Send(ctx context.Context, c Command) error {
	frame := EncodeCommand(p.format, c)
	if err := p.stream.Write(ctx, frame); err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			p.stats.RecordTransportError()
		}
		return err
	}
	p.stats.RecordCommand()
	p.logger.Debug("sent command",
		zap.Stringer("verb", c.Verb),
		zap.Uint8("arg", c.Arg),
		zap.Binary("raw", frame),
	)
	return nil
}

// Request asks the controller for one data element and waits for it.
// Frames for other elements are skipped. Read errors, including checksum
// failures, are returned without retrying.
func (p *Protocol) Request(ctx context.Context, index byte) (Element, error) {
	if err := p.Send(ctx, Command{Verb: VerbGetData, Arg: index}); err != nil {
		return Element{}, err
	}

	for {
		payload, err := p.ReadOneRaw(ctx)
		if err != nil {
			return Element{}, err
		}
		if payload[0] != index {
			continue
		}

		e, err := p.catalog.DecodeElement(payload)
		if errors.Is(err, ErrUnknownElement) {
			p.stats.RecordUnknownElement()
		}
		return e, err
	}
}
