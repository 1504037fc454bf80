package instream

// Tag is an immutable metadata snapshot produced by a backend mid-stream,
// for example an ICY title update. Ownership transfers from the I/O
// goroutine to the stream's single pending slot; if a new tag arrives
// before the previous one was consumed, the previous one is overwritten,
// not queued.
type Tag struct {
	Title string

	// Fields holds any further backend-specific entries (artist, genre,
	// station name, ...).
	Fields map[string]string
}
