//////////////////////////////////////////////////////////////////////////////
//
// Source defines the contract between a Stream and its backend
//
// Copyright 2024 Tidefall Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package instream

// Source is the backend side of a stream: a protocol client (file, HTTP,
// NFS, ...) that produces bytes asynchronously. Every method is invoked on
// the Loop goroutine, so implementations need no locking of their own.
//
// Results are never returned directly; they are delivered through the Sink
// the source was constructed with, and those calls must also happen on the
// Loop (post a task if the work finishes on another goroutine). A source
// must not invoke Sink callbacks synchronously from inside Read.
type Source interface {
	// Open starts connecting to the identified resource. A synchronous
	// error means the backend could not even be constructed; anything
	// later arrives via OnOpen or OnError.
	Open(uri string) error

	// Read requests up to n bytes at the given offset. n never exceeds
	// the buffer space the stream observed when issuing the request, so
	// delivered chunks are guaranteed to fit.
	Read(offset int64, n int) error

	// CancelRead drops the in-flight read request, if any. Once it
	// returns, no OnData delivery for a previously issued request may
	// occur.
	CancelRead()

	// Close releases the backend. No Sink calls may follow.
	Close()
}

// Sink receives a Source's results. A *Stream is the canonical
// implementation. All calls must be made on the Loop goroutine.
type Sink interface {
	// OnOpen reports a successful open: the total size in bytes (-1 when
	// unknown) and whether the backend supports repositioning.
	OnOpen(size int64, seekable bool)

	// OnData delivers the next chunk, in strict offset order. The slice
	// is copied before OnData returns; the source may reuse it.
	OnData(p []byte)

	// OnTag passes a metadata snapshot to the consumer side.
	OnTag(tag *Tag)

	// OnEnd reports a clean end of stream. Sources with a known size may
	// omit it; the stream detects exhaustion from the size itself.
	OnEnd()

	// OnError reports a failure. While the stream is paused the error is
	// held back and converted into a reconnect attempt on resume;
	// otherwise it is surfaced on the consumer's next blocking call.
	OnError(err error)
}

// SourceFactory creates a backend delivering into the given sink. Factories
// are registered per URI scheme; see RegisterSourceType.
type SourceFactory func(loop *Loop, sink Sink) (Source, error)
