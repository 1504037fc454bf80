//////////////////////////////////////////////////////////////////////////////
//
// Package instream adapts asynchronous input sources to blocking readers
//
// Copyright 2024 Tidefall Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

// Package instream converts callback-driven, non-blocking input backends
// (file, HTTP, ...) into bounded, pull-based byte streams that a decoding
// pipeline can read synchronously without ever blocking the I/O goroutine.
//
// A Stream owns a fixed ring buffer. The backend fills it from the Loop
// goroutine; consumers drain it with Read and Seek. When the buffer runs
// full the backend is paused, and resumed once the consumer has drained
// past the free-space watermark.
package instream

import "github.com/pkg/errors"

const (
	kilobyte = 1024

	// DefaultBufferSize bounds how much data is buffered ahead of the
	// consumer. Large enough to ride out high-latency links, small enough
	// not to hurt low-end devices.
	DefaultBufferSize = 512 * kilobyte

	// DefaultResumeAt is the free-space watermark at which a paused
	// backend is resumed.
	DefaultResumeAt = 384 * kilobyte

	// DefaultChunkLimit caps a single backend read request.
	DefaultChunkLimit = 32 * kilobyte
)

// Config carries the per-stream tuning knobs.
type Config struct {
	// BufferSize is the ring buffer capacity in bytes. One cell is
	// sacrificed to tell empty from full, so the stream buffers at most
	// BufferSize-1 bytes.
	BufferSize int `yaml:"buffer_size"`

	// ResumeAt is the low watermark for resuming a paused backend: once
	// the buffer has more than ResumeAt bytes of free space, a resume is
	// scheduled. Must be smaller than BufferSize.
	ResumeAt int `yaml:"resume_at"`

	// ChunkLimit caps the size of a single backend read request.
	ChunkLimit int `yaml:"chunk_limit"`

	// Metrics, when non-nil, receives stream counters.
	Metrics *Metrics `yaml:"-"`
}

func (c Config) withDefaults() (Config, error) {
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ResumeAt == 0 {
		c.ResumeAt = DefaultResumeAt
	}
	if c.ChunkLimit == 0 {
		c.ChunkLimit = DefaultChunkLimit
	}

	if c.BufferSize < 2 {
		return c, errors.Errorf("buffer size %d too small", c.BufferSize)
	}
	if c.ResumeAt >= c.BufferSize {
		return c, errors.Errorf("resume watermark %d must be below buffer size %d",
			c.ResumeAt, c.BufferSize)
	}
	if c.ChunkLimit <= 0 {
		return c, errors.Errorf("chunk limit %d must be positive", c.ChunkLimit)
	}
	return c, nil
}
