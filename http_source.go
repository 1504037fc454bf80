//////////////////////////////////////////////////////////////////////////////
//
// httpSource implements an HTTP(S) range-request backend
//
// Copyright 2024 Tidefall Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package instream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

func init() {
	RegisterSourceType("http", newHTTPSource)
	RegisterSourceType("https", newHTTPSource)
}

// httpSource serves a URL through the Source contract. A probe request at
// open time decides the mode:
//
//   - Servers honoring Range requests yield a seekable stream; every chunk
//     is fetched with its own ranged GET from a worker goroutine.
//   - Everything else yields a sequential, non-seekable stream read from a
//     single response body, terminated via OnEnd.
//
// All Sink deliveries are posted back onto the loop, guarded by a
// generation counter so canceled requests drop their completions.
type httpSource struct {
	loop   *Loop
	sink   Sink
	client *http.Client

	uri      string
	seekable bool

	// Sequential mode state. body is handed off to the single in-flight
	// read goroutine; pos is the offset it has reached. Loop-confined.
	body io.ReadCloser
	pos  int64

	gen    int // bumped by CancelRead/Close; loop-confined
	cancel context.CancelFunc
}

func newHTTPSource(loop *Loop, sink Sink) (Source, error) {
	return &httpSource{
		loop:   loop,
		sink:   sink,
		client: http.DefaultClient,
	}, nil
}

// Open probes the URL with a one-byte range request.
func (hs *httpSource) Open(uri string) error {
	hs.uri = uri
	gen := hs.gen
	ctx := hs.newRequestContext()

	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			hs.post(gen, func() {
				hs.sink.OnError(errors.Wrap(err, "bad request"))
			})
			return
		}
		req.Header.Set("Range", "bytes=0-0")

		resp, err := hs.client.Do(req)
		if err != nil {
			hs.post(gen, func() {
				hs.sink.OnError(errors.Wrap(err, "connect"))
			})
			return
		}

		switch resp.StatusCode {
		case http.StatusPartialContent:
			// Ranged mode; the probe body is not needed.
			size, err := totalFromContentRange(resp.Header.Get("Content-Range"))
			resp.Body.Close()
			if err != nil {
				hs.post(gen, func() {
					hs.sink.OnError(errors.Wrapf(ErrProtocol,
						"bad Content-Range: %v", err))
				})
				return
			}
			hs.post(gen, func() {
				hs.seekable = true
				hs.sink.OnOpen(size, true)
			})

		case http.StatusOK:
			// Server ignored the range header and is sending the
			// whole body; keep it and read sequentially.
			size := resp.ContentLength // may be -1 (chunked/live)
			hs.loop.Post(func() {
				if gen != hs.gen {
					resp.Body.Close()
					return
				}
				hs.seekable = false
				hs.body = resp.Body
				hs.pos = 0
				hs.sink.OnOpen(size, false)
			})

		default:
			status := resp.Status
			resp.Body.Close()
			hs.post(gen, func() {
				hs.sink.OnError(errors.Errorf("unexpected status %s", status))
			})
		}
	}()
	return nil
}

func (hs *httpSource) Read(offset int64, n int) error {
	if hs.seekable {
		hs.readRange(offset, n)
		return nil
	}
	return hs.readSequential(offset, n)
}

// readRange fetches one chunk with its own ranged GET.
func (hs *httpSource) readRange(offset int64, n int) {
	gen := hs.gen
	ctx := hs.newRequestContext()

	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.uri, nil)
		if err != nil {
			hs.post(gen, func() {
				hs.sink.OnError(errors.Wrap(err, "bad request"))
			})
			return
		}
		req.Header.Set("Range",
			fmt.Sprintf("bytes=%d-%d", offset, offset+int64(n)-1))

		resp, err := hs.client.Do(req)
		if err != nil {
			hs.post(gen, func() {
				hs.sink.OnError(errors.Wrap(err, "http read"))
			})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusPartialContent {
			status := resp.Status
			hs.post(gen, func() {
				hs.sink.OnError(errors.Wrapf(ErrProtocol,
					"server stopped honoring ranges: %s", status))
			})
			return
		}

		buf := make([]byte, n)
		m, err := io.ReadFull(resp.Body, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			hs.post(gen, func() {
				hs.sink.OnError(errors.Wrap(err, "http read"))
			})
			return
		}
		hs.post(gen, func() {
			hs.sink.OnData(buf[:m])
		})
	}()
}

// readSequential reads the next chunk from the persistent body. The stream
// requests chunks strictly in order, so offset must match our position.
func (hs *httpSource) readSequential(offset int64, n int) error {
	if hs.body == nil {
		return errors.New("http source not open")
	}
	if offset < hs.pos {
		return errors.Errorf("non-sequential read at %d, stream position is %d",
			offset, hs.pos)
	}

	gen := hs.gen
	body := hs.body
	skip := offset - hs.pos // after a reconnect the body restarts at 0

	go func() {
		if skip > 0 {
			if _, err := io.CopyN(io.Discard, body, skip); err != nil {
				hs.post(gen, func() {
					hs.sink.OnError(errors.Wrap(err, "http skip"))
				})
				return
			}
			hs.post(gen, func() { hs.pos += skip })
		}

		buf := make([]byte, n)
		m, err := io.ReadFull(body, buf)

		hs.post(gen, func() {
			if m > 0 {
				hs.pos += int64(m)
				hs.sink.OnData(buf[:m])
			}
			switch err {
			case nil:
			case io.EOF, io.ErrUnexpectedEOF:
				body.Close()
				hs.body = nil
				hs.sink.OnEnd()
			default:
				hs.sink.OnError(errors.Wrap(err, "http read"))
			}
		})
	}()
	return nil
}

func (hs *httpSource) CancelRead() {
	hs.gen++
	if hs.cancel != nil {
		hs.cancel()
		hs.cancel = nil
	}
	if hs.body != nil {
		// Unblock a sequential reader stuck on the body.
		hs.body.Close()
		hs.body = nil
	}
}

func (hs *httpSource) Close() {
	hs.CancelRead()
}

// newRequestContext replaces the cancellation handle for the next request.
// Loop only.
func (hs *httpSource) newRequestContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	hs.cancel = cancel
	return ctx
}

// post schedules fn onto the loop unless the request generation has been
// canceled in the meantime. The generation is re-checked on the loop, where
// it is authoritative.
func (hs *httpSource) post(gen int, fn func()) {
	hs.loop.Post(func() {
		if gen != hs.gen {
			return
		}
		fn()
	})
}

// totalFromContentRange extracts the complete length from a Content-Range
// header such as "bytes 0-0/12345".
func totalFromContentRange(header string) (int64, error) {
	i := strings.LastIndexByte(header, '/')
	if !strings.HasPrefix(header, "bytes ") || i < 0 {
		return 0, errors.Errorf("malformed header %q", header)
	}
	total := header[i+1:]
	if total == "*" {
		return -1, nil
	}
	return strconv.ParseInt(total, 10, 64)
}
