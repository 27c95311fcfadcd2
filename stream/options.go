// File: stream/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for stream sessions.

package stream

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-attach/api"
	"github.com/momentics/hioload-attach/control"
	"github.com/momentics/hioload-attach/reactor"
)

// DefaultPollQuantum is the longest single readiness wait.
const DefaultPollQuantum = 10 * time.Millisecond

// Option customizes a session.
type Option func(*options)

type options struct {
	quantum   time.Duration
	maxFrame  uint32
	newPoller api.PollerFactory
	logger    zerolog.Logger
	metrics   *control.MetricsRegistry
}

func defaultOptions() options {
	return options{
		quantum:   DefaultPollQuantum,
		newPoller: reactor.NewPoller,
		logger:    zerolog.Nop(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.quantum <= 0 {
		o.quantum = DefaultPollQuantum
	}
	if o.newPoller == nil {
		o.newPoller = reactor.NewPoller
	}
	return o
}

// WithPollQuantum overrides the readiness wait quantum.
func WithPollQuantum(d time.Duration) Option {
	return func(o *options) {
		o.quantum = d
	}
}

// WithMaxFrameSize rejects frames declaring more than n payload bytes.
// Zero (the default) accepts any length.
func WithMaxFrameSize(n uint32) Option {
	return func(o *options) {
		o.maxFrame = n
	}
}

// WithPoller replaces the platform poller, mainly for tests.
func WithPoller(f api.PollerFactory) Option {
	return func(o *options) {
		o.newPoller = f
	}
}

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records session counters into mr.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(o *options) {
		o.metrics = mr
	}
}

// FromConfig applies the stream-related fields of cfg.
func FromConfig(cfg control.Config) Option {
	return func(o *options) {
		if cfg.PollQuantum > 0 {
			o.quantum = cfg.PollQuantum
		}
		o.maxFrame = cfg.MaxFrameSize
	}
}
