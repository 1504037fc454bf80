package instream

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rangedServer honors Range requests, the way a static file server would.
func rangedServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.ServeContent(w, r, "stream.dat", time.Time{},
				bytes.NewReader(content))
		}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSourceRangedReadAll(t *testing.T) {
	const size = 50000
	srv := rangedServer(t, fakePattern(0, size))

	loop := NewLoop()
	defer loop.Close()

	s, err := Open(loop, srv.URL, Config{BufferSize: 8192, ResumeAt: 2048, ChunkLimit: 4096})
	require.NoError(t, err)
	defer s.Close()

	assert.EqualValues(t, size, s.Size())

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, fakePattern(0, size), data)
	assert.True(t, s.IsEOF())
}

func TestHTTPSourceRangedSeek(t *testing.T) {
	const size = 50000
	srv := rangedServer(t, fakePattern(0, size))

	loop := NewLoop()
	defer loop.Close()

	s, err := Open(loop, srv.URL, Config{BufferSize: 8192, ResumeAt: 2048})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Seek(20000))

	p := make([]byte, 512)
	_, err = io.ReadFull(s, p)
	require.NoError(t, err)
	assert.Equal(t, fakePattern(20000, 512), p)
}

// A server that ignores Range headers forces the sequential, non-seekable
// mode. Flushing early suppresses Content-Length, so the stream learns the
// end only from the body terminating.
func TestHTTPSourceSequentialFallback(t *testing.T) {
	const size = 10000
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			w.Write(fakePattern(0, size))
		}))
	defer srv.Close()

	loop := NewLoop()
	defer loop.Close()

	s, err := Open(loop, srv.URL, Config{BufferSize: 4096, ResumeAt: 1024})
	require.NoError(t, err)
	defer s.Close()

	assert.EqualValues(t, -1, s.Size(), "chunked response has no known size")
	assert.Equal(t, ErrNotSeekable, s.Seek(100))

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, fakePattern(0, size), data)
	assert.True(t, s.IsEOF())
}

// With Content-Length present the stream knows the size up front even in
// sequential mode.
func TestHTTPSourceSequentialKnownSize(t *testing.T) {
	const size = 1000
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Write(fakePattern(0, size))
		}))
	defer srv.Close()

	loop := NewLoop()
	defer loop.Close()

	s, err := Open(loop, srv.URL, Config{})
	require.NoError(t, err)
	defer s.Close()

	assert.EqualValues(t, size, s.Size())

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, fakePattern(0, size), data)
}

func TestHTTPSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	loop := NewLoop()
	defer loop.Close()

	_, err := Open(loop, srv.URL, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPSourceConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	loop := NewLoop()
	defer loop.Close()

	_, err := Open(loop, url, Config{})
	require.Error(t, err)
}

func TestTotalFromContentRange(t *testing.T) {
	total, err := totalFromContentRange("bytes 0-0/12345")
	require.NoError(t, err)
	assert.EqualValues(t, 12345, total)

	total, err = totalFromContentRange("bytes 0-0/*")
	require.NoError(t, err)
	assert.EqualValues(t, -1, total)

	_, err = totalFromContentRange("bytes 0-0")
	assert.Error(t, err)

	_, err = totalFromContentRange("garbage")
	assert.Error(t, err)
}
