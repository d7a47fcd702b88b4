package bootstrap

import (
	"io"
	"time"

	"github.com/kbukum/reportflow/chain"
	"github.com/kbukum/reportflow/filters"
	"github.com/kbukum/reportflow/logger"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	loader          chain.Loader
	writer          filters.MessageWriter
	summaryOut      io.Writer
	gracefulTimeout *time.Duration
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger. If not set, the global logger is
// initialized from the config's logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout bounds the shutdown at the end of RunTask.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithLoader replaces the file loader over the configured chain dirs.
func WithLoader(l chain.Loader) Option {
	return func(o *appOptions) {
		o.loader = l
	}
}

// WithMessageWriter replaces the kafka writer built from config. Start
// still requires kafka to be enabled to register the sink.
func WithMessageWriter(w filters.MessageWriter) Option {
	return func(o *appOptions) {
		o.writer = w
	}
}

// WithSummaryWriter sets where the startup summary is printed. Defaults to
// stdout.
func WithSummaryWriter(w io.Writer) Option {
	return func(o *appOptions) {
		o.summaryOut = w
	}
}
