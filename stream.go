//////////////////////////////////////////////////////////////////////////////
//
// Stream adapts an asynchronous Source into a blocking byte stream
//
// Copyright 2024 Tidefall Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package instream

import (
	"io"

	"github.com/pkg/errors"

	"github.com/tidefall/instream/internal/monitor"
	"github.com/tidefall/instream/internal/ring"
)

// seekState tracks an in-flight reposition request:
// none --Seek()--> scheduled --deferred task--> pending --seekDone()--> none.
type seekState uint8

const (
	seekNone seekState = iota
	seekScheduled
	seekPending
)

// Stream moves an asynchronous (non-blocking) Source onto the Loop
// goroutine. Data is read into a ring buffer there, and the buffer is then
// drained by consumers through the blocking Read/Seek API.
//
// A single monitor guards all stream state including the buffer contents.
// Consumers hold it for the duration of each call except while waiting;
// the Loop holds it while running callbacks, releasing it in a scoped way
// around backend sub-calls that could re-enter the stream.
type Stream struct {
	mon  *monitor.Monitor
	loop *Loop
	src  Source
	uri  string

	// storage backs the ring buffer and is owned by the stream for its
	// entire lifetime, which keeps a racing deferred teardown safe.
	storage []byte
	buf     *ring.Buffer

	resumeAt   int
	chunkLimit int
	metrics    *Metrics

	deferredResume *Task
	deferredSeek   *Task

	// Everything below is guarded by mon.

	size     int64 // total bytes, -1 while (or if ever) unknown
	seekable bool
	ready    bool // size/seekability known
	open     bool // source still producing; false once exhausted or closed
	paused   bool // backend stopped on a full buffer
	closed   bool // Close was called

	offset     int64 // consumer position: next byte Read returns
	nextOffset int64 // producer position: next byte to request

	seekState  seekState
	seekOffset int64

	postponed error
	tag       *Tag

	// A transfer failure observed while paused is held back; on resume we
	// close and reopen the backend instead, and only escalate if that
	// fails too.
	reconnectOnResume bool
	reconnecting      bool
}

func newStream(loop *Loop, uri string, config Config) *Stream {
	storage := make([]byte, config.BufferSize)
	s := &Stream{
		mon:        monitor.New(),
		loop:       loop,
		uri:        uri,
		storage:    storage,
		buf:        ring.New(storage),
		resumeAt:   config.ResumeAt,
		chunkLimit: config.ChunkLimit,
		metrics:    config.Metrics,
		size:       -1,
		open:       true,
	}
	s.deferredResume = loop.NewTask(s.deferResume)
	s.deferredSeek = loop.NewTask(s.deferSeek)
	return s
}

// URI returns the identifier the stream was opened with.
func (s *Stream) URI() string { return s.uri }

// Size returns the total stream size in bytes, or -1 when unknown.
func (s *Stream) Size() int64 {
	s.mon.Lock()
	defer s.mon.Unlock()
	return s.size
}

// Offset returns the consumer position: the offset of the next byte Read
// will return.
func (s *Stream) Offset() int64 {
	s.mon.Lock()
	defer s.mon.Unlock()
	return s.offset
}

// IsAvailable reports whether the backend has reported size and
// seekability, i.e. whether the stream is ready for consumption.
func (s *Stream) IsAvailable() bool {
	s.mon.Lock()
	defer s.mon.Unlock()
	return s.ready
}

// IsEOF reports whether the source is exhausted and the buffer drained.
func (s *Stream) IsEOF() bool {
	s.mon.Lock()
	defer s.mon.Unlock()
	return !s.open && s.buf.Empty()
}

// ReadTag returns and clears the pending metadata snapshot, if any.
// Non-blocking.
func (s *Stream) ReadTag() *Tag {
	s.mon.Lock()
	defer s.mon.Unlock()
	t := s.tag
	s.tag = nil
	return t
}

// Read copies buffered bytes into p, blocking while the buffer is empty and
// the source may still produce data. It returns 0, io.EOF once the source
// is exhausted and the buffer drained. A postponed backend error is
// delivered (and cleared) here, taking precedence over buffered data.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	s.mon.Lock()
	defer s.mon.Unlock()

	for {
		if s.closed {
			return 0, ErrStreamClosed
		}
		if err := s.takeError(); err != nil {
			return 0, err
		}
		if !s.buf.Empty() {
			break
		}
		if !s.open {
			return 0, io.EOF
		}

		s.mon.WaitWhile(func() bool {
			return !s.closed && s.open && s.postponed == nil && s.buf.Empty()
		})
	}

	n := s.readFromBuffer(p)
	if s.paused && s.buf.Space() > s.resumeAt {
		s.deferredResume.Schedule()
	}
	return n, nil
}

// readFromBuffer copies up to len(p) bytes out of the ring, consuming them.
// The buffered data may span the wrap point, hence up to two windows.
func (s *Stream) readFromBuffer(p []byte) int {
	total := 0
	for total < len(p) && !s.buf.Empty() {
		n := copy(p[total:], s.buf.Read())
		s.buf.Consume(n)
		total += n
	}
	s.offset += int64(total)
	if s.metrics != nil {
		s.metrics.BytesRead.Add(float64(total))
	}
	return total
}

// Seek repositions the consumer to newOffset, discarding all buffered data
// that precedes it. It blocks until the backend has restarted there. Fails
// immediately with ErrNotSeekable when the backend never declared
// seekability.
//
// A Seek issued while another is still in flight coalesces: last writer
// wins, and both callers return once the final target is reached.
func (s *Stream) Seek(newOffset int64) error {
	s.mon.Lock()
	defer s.mon.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if err := s.takeError(); err != nil {
		return err
	}
	if !s.ready {
		return errors.New("seek before stream is ready")
	}
	if !s.seekable {
		return ErrNotSeekable
	}
	if newOffset < 0 {
		return errors.Errorf("negative seek offset %d", newOffset)
	}

	if s.seekState == seekNone {
		if newOffset == s.offset {
			return nil
		}

		// Try to fast-forward within already buffered data before
		// involving the backend.
		for newOffset > s.offset && !s.buf.Empty() {
			r := s.buf.Read()
			n := int64(len(r))
			if want := newOffset - s.offset; n > want {
				n = want
			}
			s.buf.Consume(int(n))
			s.offset += n
		}
		if newOffset == s.offset {
			if s.paused && s.buf.Space() > s.resumeAt {
				s.deferredResume.Schedule()
			}
			return nil
		}

		s.seekState = seekScheduled
		s.deferredSeek.Schedule()
	}

	// Last writer wins; an in-flight seek task re-checks the target
	// before completing.
	s.seekOffset = newOffset
	if s.metrics != nil {
		s.metrics.Seeks.Inc()
	}

	s.mon.WaitWhile(func() bool {
		return s.seekState != seekNone && !s.closed
	})
	if s.closed {
		return ErrStreamClosed
	}
	return s.takeError()
}

// Close releases the stream. Blocked readers and seekers are woken with
// ErrStreamClosed. Backend teardown is posted onto the loop so network
// cleanup never races a callback in flight; Close does not wait for it.
func (s *Stream) Close() error {
	s.mon.Lock()
	if s.closed {
		s.mon.Unlock()
		return nil
	}
	s.closed = true
	s.open = false
	s.mon.Broadcast()
	src := s.src
	s.mon.Unlock()

	s.deferredResume.Cancel()
	s.deferredSeek.Cancel()

	s.loop.Post(func() { src.Close() })
	return nil
}

// takeError clears and returns the postponed backend error. Must hold mon.
func (s *Stream) takeError() error {
	err := s.postponed
	s.postponed = nil
	return err
}

// postpone stores err in the single deferred-error slot (first error wins)
// and wakes the consumer. Must hold mon.
func (s *Stream) postpone(err error) {
	if s.postponed == nil {
		s.postponed = err
	}
	if s.metrics != nil {
		s.metrics.Errors.Inc()
	}
	s.mon.Broadcast()
}

// waitReady blocks until the backend reported OnOpen, or failed.
func (s *Stream) waitReady() error {
	s.mon.Lock()
	defer s.mon.Unlock()

	s.mon.WaitWhile(func() bool {
		return !s.ready && s.postponed == nil && !s.closed
	})
	if s.closed {
		return ErrStreamClosed
	}
	return s.takeError()
}

/*
 * I/O-side protocol. Everything below runs on the Loop goroutine.
 */

// OnOpen implements Sink.
func (s *Stream) OnOpen(size int64, seekable bool) {
	s.mon.Lock()
	defer s.mon.Unlock()

	if s.closed {
		return
	}

	if s.reconnecting {
		// Reconnect after a pause-masked failure succeeded; keep
		// filling from where we left off.
		log.Debugw("reconnected", "uri", s.uri, "offset", s.nextOffset)
		s.reconnecting = false
		s.fill()
		return
	}

	s.size = size
	s.seekable = seekable
	s.nextOffset = 0
	s.ready = true
	s.mon.Broadcast()
	s.fill()
}

// OnData implements Sink.
func (s *Stream) OnData(p []byte) {
	s.mon.Lock()
	defer s.mon.Unlock()

	if s.closed || len(p) == 0 {
		return
	}

	if len(p) > s.buf.Space() {
		s.postpone(errors.Wrapf(ErrProtocol,
			"%d byte chunk exceeds %d bytes of buffer space", len(p), s.buf.Space()))
		return
	}
	if s.size >= 0 && s.nextOffset+int64(len(p)) > s.size {
		s.postpone(errors.Wrapf(ErrProtocol,
			"data beyond declared size %d", s.size))
		return
	}

	s.appendToBuffer(p)
	s.nextOffset += int64(len(p))
	s.mon.Broadcast()
	s.fill()
}

// appendToBuffer copies src into the ring. The caller guarantees it fits;
// the free region may wrap, hence up to two windows.
func (s *Stream) appendToBuffer(src []byte) {
	for len(src) > 0 {
		n := copy(s.buf.Write(), src)
		s.buf.Append(n)
		src = src[n:]
	}
}

// OnTag implements Sink.
func (s *Stream) OnTag(tag *Tag) {
	s.mon.Lock()
	defer s.mon.Unlock()
	if s.closed {
		return
	}
	s.tag = tag
}

// OnEnd implements Sink.
func (s *Stream) OnEnd() {
	s.mon.Lock()
	defer s.mon.Unlock()
	if s.closed {
		return
	}
	s.setClosed()
}

// OnError implements Sink.
func (s *Stream) OnError(err error) {
	s.mon.Lock()
	defer s.mon.Unlock()

	if s.closed {
		return
	}

	if s.paused {
		// Probably a timeout during an intentionally idle period
		// (playback paused for a while). Hold the error back and try
		// to reconnect on resume; only a failing reconnect escalates.
		log.Debugw("masking error while paused", "uri", s.uri, "error", err)
		s.reconnectOnResume = true
		return
	}

	s.reconnecting = false
	s.postpone(err)

	if s.seekState == seekPending {
		s.seekDone()
	} else if !s.ready {
		s.ready = true // wake the opener, which takes the error
	}
}

// setClosed declares the source exhausted. Read keeps serving buffered
// bytes; EOF is reported only once the buffer drains. Must hold mon.
func (s *Stream) setClosed() {
	if !s.open {
		return
	}
	s.open = false
	s.mon.Broadcast()
}

// pause stops the fill loop until the consumer drains past the watermark.
// Must hold mon; loop only.
func (s *Stream) pause() {
	if s.paused {
		return
	}
	s.paused = true
	if s.metrics != nil {
		s.metrics.Pauses.Inc()
	}
	log.Debugw("stream paused", "uri", s.uri, "offset", s.nextOffset)
}

// seekDone completes an in-flight seek and wakes its waiters. Must hold
// mon; loop only.
func (s *Stream) seekDone() {
	s.seekState = seekNone
	s.mon.Broadcast()
}

// fill keeps the buffer topped up: request the next chunk, or pause when
// there is no space left. Must hold mon; loop only.
func (s *Stream) fill() {
	if s.closed || !s.open || s.paused || s.reconnecting {
		return
	}
	if s.postponed != nil || s.seekState != seekNone {
		return
	}

	if s.size >= 0 && s.nextOffset >= s.size {
		// Source exhausted; the rest is served from the buffer.
		s.setClosed()
		return
	}

	space := s.buf.Space()
	if space == 0 {
		s.pause()
		return
	}

	n := space
	if n > s.chunkLimit {
		n = s.chunkLimit
	}
	if s.size >= 0 {
		if remaining := s.size - s.nextOffset; int64(n) > remaining {
			n = int(remaining)
		}
	}

	offset := s.nextOffset
	var err error
	s.mon.Unlocked(func() {
		err = s.src.Read(offset, n)
	})
	if err != nil {
		s.postpone(errors.Wrap(err, "read request failed"))
	}
}

// deferResume runs on the loop when the consumer has drained past the
// watermark.
func (s *Stream) deferResume() {
	s.mon.Lock()
	defer s.mon.Unlock()

	if s.closed || !s.paused {
		return
	}
	s.paused = false
	if s.metrics != nil {
		s.metrics.Resumes.Inc()
	}
	log.Debugw("stream resumed", "uri", s.uri, "offset", s.nextOffset)

	if s.reconnectOnResume {
		// The connection died while we were paused; give it another
		// chance before surfacing anything to the consumer.
		s.reconnectOnResume = false
		s.reconnecting = true

		var err error
		s.mon.Unlocked(func() {
			s.src.Close()
			err = s.src.Open(s.uri)
		})
		if err != nil {
			s.reconnecting = false
			s.postpone(errors.Wrap(err, "reconnect failed"))
		}
		return
	}

	s.fill()
}

// deferSeek runs on the loop to execute a scheduled seek: cancel the
// in-flight read, flush everything buffered for the old position, rebase
// both cursors, then wake the seeker and restart the fill loop.
func (s *Stream) deferSeek() {
	s.mon.Lock()
	defer s.mon.Unlock()

	if s.seekState != seekScheduled {
		return
	}
	s.seekState = seekPending

	for {
		target := s.seekOffset

		s.mon.Unlocked(func() {
			s.src.CancelRead()
		})
		if s.seekState != seekPending {
			// An error completed the seek while we were unlocked.
			return
		}

		s.buf.Clear()
		s.offset = target
		s.nextOffset = target

		// A coalesced Seek may have moved the target while the lock
		// was released; serve the latest request before finishing.
		if s.seekOffset == target {
			break
		}
	}

	// The flush freed the whole buffer, so a paused backend may proceed
	// immediately.
	s.paused = false

	s.seekDone()
	s.fill()
}
