package main

import (
	"fmt"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagConfig     string
	flagOutput     string
	flagSeek       int64
	flagCount      int64
	flagRate       int
	flagBufferSize int
	flagResumeAt   int
	flagChunkLimit int
	flagHelp       bool
	flagVersion    bool
)

func init() {
	flag.StringVarP(&flagConfig, "config", "c", "", "YAML configuration file")
	flag.StringVarP(&flagOutput, "output", "o", "-", "Output file, - for stdout")
	flag.Int64VarP(&flagSeek, "seek", "s", 0, "Start offset, in bytes")
	flag.Int64VarP(&flagCount, "count", "n", 0, "Stop after NUM bytes, 0 for all")
	flag.IntVarP(&flagRate, "rate", "r", 0, "Throttle output, in KiB/s, 0 for unlimited")
	flag.IntVarP(&flagBufferSize, "buffer-size", "", 0, "Stream buffer capacity, in bytes")
	flag.IntVarP(&flagResumeAt, "resume-at", "", 0, "Resume watermark, in bytes of free space")
	flag.IntVarP(&flagChunkLimit, "chunk-limit", "", 0, "Largest single read request, in bytes")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Stream a URI to a file or stdout through a bounded ring buffer

Usage: instreamcat [OPTION]... URI

Stream:
  -s, --seek=NUM         Start reading at this byte offset (default: 0)
  -n, --count=NUM        Stop after NUM bytes (default: to end of stream)
  -r, --rate=NUM         Throttle output to NUM KiB/s (default: unlimited)

Buffering:
  -c, --config=FILE      Load buffer settings from a YAML file
      --buffer-size=NUM  Buffer capacity, in bytes (default: 524288)
      --resume-at=NUM    Free-space watermark at which a paused transfer
                           resumes, in bytes (default: 393216)
      --chunk-limit=NUM  Largest single read request, in bytes
                           (default: 32768)

Output:
  -o, --output=FILE      Write to FILE instead of stdout

Miscellaneous:
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits

Supported URI schemes: file://, http://, https://, and bare filesystem paths.`

// Help information is printed and program exits
func help() {
	b := color.New(color.FgCyan, color.Bold)
	b.Println("instreamcat")
	fmt.Println(helpString)
}

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("instreamcat", GitRevisionId)
	fmt.Println("Copyright 2024 Tidefall Labs. All rights reserved.")
}
