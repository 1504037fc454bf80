package instream

import "github.com/pkg/errors"

var (
	// ErrNotSeekable is returned by Seek when the backend did not declare
	// itself seekable at open time.
	ErrNotSeekable = errors.New("stream is not seekable")

	// ErrStreamClosed is returned by operations on a closed stream and to
	// callers that were blocked in one when Close was called.
	ErrStreamClosed = errors.New("stream closed")

	// ErrProtocol indicates a backend delivered data inconsistent with its
	// own declared size or the requested window. Always fatal, never
	// retried.
	ErrProtocol = errors.New("backend protocol violation")
)
