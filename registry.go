package instream

import (
	"net/url"
	"sort"

	"github.com/pkg/errors"
)

var registry = map[string]SourceFactory{}

// RegisterSourceType makes factory the backend for URIs with the given
// scheme. The empty scheme matches bare filesystem paths.
func RegisterSourceType(scheme string, factory SourceFactory) {
	registry[scheme] = factory
}

// Open opens uri as a pull-based stream on the given loop, picking the
// backend by URI scheme. It blocks until the backend reported its size and
// seekability, or failed: open failures surface here, synchronously.
func Open(loop *Loop, uri string, config Config) (*Stream, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %q", uri)
	}

	factory, found := registry[u.Scheme]
	if !found {
		var schemes []string
		for scheme := range registry {
			schemes = append(schemes, scheme)
		}
		sort.Strings(schemes)
		log.Debugw("registered source types", "schemes", schemes)
		return nil, errors.Errorf("source type %q not registered", u.Scheme)
	}

	s := newStream(loop, uri, config)
	src, err := factory(loop, s)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", uri)
	}
	s.src = src

	loop.Post(func() {
		if err := src.Open(uri); err != nil {
			s.OnError(errors.Wrap(err, "open failed"))
		}
	})

	if err := s.waitReady(); err != nil {
		s.Close()
		return nil, errors.Wrapf(err, "open %q", uri)
	}
	return s, nil
}
