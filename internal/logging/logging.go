// Package logging builds the per-component loggers used across todosync.
//
// Every component gets a stdlib *log.Logger with a "[component] " prefix.
// Output goes to stderr, or to a size-rotated file when one is configured.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log destination.
type Options struct {
	// File enables rotating file output; empty logs to stderr
	File string

	// MaxSizeMB is the size at which the file rotates (default: 10)
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int

	// Quiet discards all output
	Quiet bool
}

// Factory hands out loggers that share one destination.
type Factory struct {
	out    io.Writer
	closer io.Closer
}

// New creates a Factory for opts. It fails when the log file's directory
// cannot be created.
func New(opts Options) (*Factory, error) {
	switch {
	case opts.Quiet:
		return &Factory{out: io.Discard}, nil
	case opts.File == "":
		return &Factory{out: os.Stderr}, nil
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	return &Factory{out: lj, closer: lj}, nil
}

// Logger returns a logger prefixed with "[component] ".
func (f *Factory) Logger(component string) *log.Logger {
	return log.New(f.out, "["+component+"] ", log.LstdFlags)
}

// Writer returns the shared destination.
func (f *Factory) Writer() io.Writer {
	return f.out
}

// Close releases the log file, if any.
func (f *Factory) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
