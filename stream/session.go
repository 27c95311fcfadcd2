// File: stream/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session lifecycle: poller acquisition, frame pulls and guaranteed release.

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-attach/api"
	"github.com/momentics/hioload-attach/control"
	"github.com/momentics/hioload-attach/protocol"
)

// Session reads frames from one handle until a shared deadline.
// A Session is not safe for concurrent use.
type Session struct {
	r        reader
	deadline time.Time
	log      zerolog.Logger
	metrics  *control.MetricsRegistry

	frames int
	err    error // terminal condition, io.EOF on graceful end
	closed bool
	cerr   error
}

// Open starts a session over h with a deadline timeout from now.
// The session owns h: it is closed by Session.Close, and also when Open fails.
func Open(h api.Handle, timeout time.Duration, opts ...Option) (*Session, error) {
	return OpenContext(context.Background(), h, timeout, opts...)
}

// OpenContext is Open with a context checked between poll cycles.
func OpenContext(ctx context.Context, h api.Handle, timeout time.Duration, opts ...Option) (*Session, error) {
	return openAt(ctx, h, time.Now().Add(timeout), buildOptions(opts))
}

func openAt(ctx context.Context, h api.Handle, deadline time.Time, o options) (*Session, error) {
	if h == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "nil handle")
	}
	poller, err := o.newPoller()
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("create poller: %w", err)
	}
	if err := poller.Register(h.RawFD()); err != nil {
		_ = poller.Close()
		_ = h.Close()
		return nil, fmt.Errorf("register fd %d: %w", h.RawFD(), err)
	}

	s := &Session{
		r: reader{
			ctx:      ctx,
			h:        h,
			poller:   poller,
			quantum:  o.quantum,
			maxFrame: o.maxFrame,
		},
		deadline: deadline,
		log:      o.logger.With().Uint64("fd", uint64(h.RawFD())).Logger(),
		metrics:  o.metrics,
	}
	s.metrics.Add(control.MetricSessionsOpened, 1)
	s.log.Debug().Time("deadline", deadline).Dur("quantum", o.quantum).Msg("stream session opened")
	return s, nil
}

// Deadline returns the absolute deadline of the session.
func (s *Session) Deadline() time.Time {
	return s.deadline
}

// Frames returns how many frames have been decoded so far.
func (s *Session) Frames() int {
	return s.frames
}

// Next returns the next payload. It returns io.EOF once the peer has closed
// the stream at a frame boundary. Any error is terminal: the session releases
// its resources and keeps returning the same error.
func (s *Session) Next() ([]byte, error) {
	f, err := s.NextFrame()
	return f.Payload, err
}

// NextFrame is Next keeping the channel tag of the frame.
func (s *Session) NextFrame() (protocol.Frame, error) {
	if s.err != nil {
		return protocol.Frame{}, s.err
	}
	if s.closed {
		return protocol.Frame{}, api.ErrHandleClosed
	}
	f, err := s.r.nextFrame(s.deadline)
	if err != nil {
		s.fail(err)
		return protocol.Frame{}, err
	}
	s.frames++
	s.metrics.Add(control.MetricFrames, 1)
	s.metrics.Add(control.MetricBytes, int64(len(f.Payload)))
	return f, nil
}

func (s *Session) fail(err error) {
	s.err = err
	switch {
	case err == io.EOF:
		s.log.Debug().Int("frames", s.frames).Msg("stream ended")
	case errors.Is(err, api.ErrOperationTimeout):
		s.metrics.Add(control.MetricTimeouts, 1)
		s.log.Debug().Err(err).Int("frames", s.frames).Msg("stream timed out")
	case errors.Is(err, api.ErrTruncatedFrame):
		s.metrics.Add(control.MetricTruncated, 1)
		s.log.Warn().Err(err).Int("frames", s.frames).Msg("stream truncated mid-frame")
	case errors.Is(err, api.ErrFrameTooLarge):
		s.metrics.Add(control.MetricTooLarge, 1)
		s.log.Warn().Err(err).Msg("frame rejected")
	default:
		s.log.Debug().Err(err).Msg("stream failed")
	}
	_ = s.Close()
}

// Close releases the poller and the handle. Only the first call does work;
// later calls return the first result.
func (s *Session) Close() error {
	if s.closed {
		return s.cerr
	}
	s.closed = true
	var result *multierror.Error
	if err := s.r.poller.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close poller: %w", err))
	}
	if err := s.r.h.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close handle: %w", err))
	}
	s.cerr = result.ErrorOrNil()
	s.metrics.Add(control.MetricSessionsClosed, 1)
	s.log.Debug().Int("frames", s.frames).Msg("stream session closed")
	return s.cerr
}
