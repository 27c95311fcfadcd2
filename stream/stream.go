// File: stream/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lazy, single-use sequences over a stream session.

package stream

import (
	"context"
	"io"
	"iter"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-attach/api"
	"github.com/momentics/hioload-attach/protocol"
)

// Stream returns the payloads of h as a lazy sequence. The deadline is fixed
// now, when Stream is called. The poller is created on the first pull; the
// poller and h are released when the sequence ends, fails, or the consumer
// stops early. A failure is yielded once as (nil, err) and ends the sequence.
//
// The sequence can be ranged over once. h is owned by it from this call on
// and is only released by ranging: a sequence that is never ranged never
// closes h. Callers that may not consume the output should use Open, which
// acquires the poller eagerly, and release everything with Session.Close.
func Stream(h api.Handle, timeout time.Duration, opts ...Option) iter.Seq2[[]byte, error] {
	return StreamContext(context.Background(), h, timeout, opts...)
}

// StreamContext is Stream with cancellation via ctx.
func StreamContext(ctx context.Context, h api.Handle, timeout time.Duration, opts ...Option) iter.Seq2[[]byte, error] {
	return sequence(ctx, h, time.Now().Add(timeout), buildOptions(opts), func(f protocol.Frame) []byte {
		return f.Payload
	})
}

// Frames is Stream yielding whole frames with their channel tag.
func Frames(ctx context.Context, h api.Handle, timeout time.Duration, opts ...Option) iter.Seq2[protocol.Frame, error] {
	return sequence(ctx, h, time.Now().Add(timeout), buildOptions(opts), func(f protocol.Frame) protocol.Frame {
		return f
	})
}

func sequence[T any](ctx context.Context, h api.Handle, deadline time.Time, o options, conv func(protocol.Frame) T) iter.Seq2[T, error] {
	var used atomic.Bool
	return func(yield func(T, error) bool) {
		var zero T
		if used.Swap(true) {
			yield(zero, api.NewError(api.ErrCodeInvalidArgument, "stream sequence already consumed"))
			return
		}
		s, err := openAt(ctx, h, deadline, o)
		if err != nil {
			yield(zero, err)
			return
		}
		defer s.Close()
		for {
			f, err := s.NextFrame()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(conv(f), nil) {
				return
			}
		}
	}
}

// Collect drains a payload sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[[]byte, error]) ([][]byte, error) {
	var out [][]byte
	for chunk, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, chunk)
	}
	return out, nil
}
