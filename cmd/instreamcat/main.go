package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/tidefall/instream"
)

// Populated via -ldflags="-X ...".
var GitRevisionId string
var GitTag string

func fatal(err error) {
	color.New(color.FgRed).Fprintln(os.Stderr, "instreamcat:", err)
	os.Exit(1)
}

// loadConfig merges the optional YAML file with command line overrides.
func loadConfig() (instream.Config, error) {
	var config instream.Config

	if flagConfig != "" {
		data, err := os.ReadFile(flagConfig)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, err
		}
	}

	if flag.CommandLine.Changed("buffer-size") {
		config.BufferSize = flagBufferSize
	}
	if flag.CommandLine.Changed("resume-at") {
		config.ResumeAt = flagResumeAt
	}
	if flag.CommandLine.Changed("chunk-limit") {
		config.ChunkLimit = flagChunkLimit
	}
	return config, nil
}

// throttledWriter paces writes through a token bucket, one token per byte.
type throttledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
}

func (tw *throttledWriter) Write(p []byte) (int, error) {
	// WaitN caps n at the bucket's burst size, so feed it in slices.
	for consumed := 0; consumed < len(p); {
		n := len(p) - consumed
		if burst := tw.limiter.Burst(); n > burst {
			n = burst
		}
		if err := tw.limiter.WaitN(context.Background(), n); err != nil {
			return consumed, err
		}
		if _, err := tw.w.Write(p[consumed : consumed+n]); err != nil {
			return consumed, err
		}
		consumed += n
	}
	return len(p), nil
}

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		version()
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fatal(fmt.Errorf("expected exactly one URI argument, see --help"))
	}
	uri := flag.Arg(0)

	config, err := loadConfig()
	if err != nil {
		fatal(err)
	}

	var out io.Writer = os.Stdout
	if flagOutput != "-" {
		f, err := os.Create(flagOutput)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		out = f
	}
	if flagRate > 0 {
		kib := flagRate * 1024
		out = &throttledWriter{w: out, limiter: rate.NewLimiter(rate.Limit(kib), kib)}
	}

	loop := instream.NewLoop()
	defer loop.Close()

	s, err := instream.Open(loop, uri, config)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	if flagSeek > 0 {
		if err := s.Seek(flagSeek); err != nil {
			fatal(err)
		}
	}

	var src io.Reader = tagReporter{s}
	if flagCount > 0 {
		src = io.LimitReader(src, flagCount)
	}

	if _, err := io.Copy(out, src); err != nil {
		fatal(err)
	}
}

// tagReporter surfaces metadata updates on stderr as they stream by.
type tagReporter struct {
	s *instream.Stream
}

func (tr tagReporter) Read(p []byte) (int, error) {
	n, err := tr.s.Read(p)
	if tag := tr.s.ReadTag(); tag != nil {
		color.New(color.FgYellow).Fprintln(os.Stderr, "tag:", tag.Title)
	}
	return n, err
}
