//////////////////////////////////////////////////////////////////////////////
//
// fileSource implements a read-from-file backend
//
// Copyright 2024 Tidefall Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package instream

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

func init() {
	RegisterSourceType("file", newFileSource)
	RegisterSourceType("", newFileSource) // bare paths
}

// fileSource serves a local file through the Source contract. It is the
// reference backend: reads execute as loop tasks, so they arrive through
// the same deferred path a network client would use, with a generation
// counter standing in for real request cancellation.
//
// Local reads briefly block the loop. That is acceptable here; a network
// backend must not copy this shortcut.
type fileSource struct {
	loop *Loop
	sink Sink

	file *os.File

	// gen is bumped by CancelRead so queued completions for stale
	// requests drop themselves. Loop-confined, no locking needed.
	gen int
}

func newFileSource(loop *Loop, sink Sink) (Source, error) {
	return &fileSource{loop: loop, sink: sink}, nil
}

func (fs *fileSource) Open(uri string) error {
	path := strings.TrimPrefix(uri, "file://")

	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return errors.Wrap(err, "stat file")
	}

	fs.file = file
	size := info.Size()
	fs.loop.Post(func() {
		fs.sink.OnOpen(size, true)
	})
	return nil
}

func (fs *fileSource) Read(offset int64, n int) error {
	if fs.file == nil {
		return errors.New("file source not open")
	}

	gen := fs.gen
	fs.loop.Post(func() {
		if gen != fs.gen || fs.file == nil {
			return // canceled or closed in the meantime
		}

		buf := make([]byte, n)
		m, err := fs.file.ReadAt(buf, offset)
		if m > 0 {
			fs.sink.OnData(buf[:m])
		}
		switch {
		case err == io.EOF:
			if m == 0 {
				// File shorter than advertised (truncated under
				// us); the stream treats a clean end here as
				// exhaustion.
				fs.sink.OnEnd()
			}
		case err != nil:
			fs.sink.OnError(errors.Wrap(err, "file read"))
		}
	})
	return nil
}

func (fs *fileSource) CancelRead() {
	fs.gen++
}

func (fs *fileSource) Close() {
	fs.gen++
	if fs.file != nil {
		fs.file.Close()
		fs.file = nil
	}
}
