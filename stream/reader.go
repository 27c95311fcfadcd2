// File: stream/reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poll/read loop assembling exact byte counts before an absolute deadline.

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/momentics/hioload-attach/api"
	"github.com/momentics/hioload-attach/protocol"
)

// maxReadChunk bounds a single read, so a large declared length grows the
// accumulation buffer as bytes arrive instead of allocating it up front.
const maxReadChunk = 64 << 10

type reader struct {
	ctx      context.Context
	h        api.Handle
	poller   api.Poller
	quantum  time.Duration
	maxFrame uint32
}

// readExact returns exactly n bytes or an error. On closure the bytes
// accumulated so far are returned alongside api.ErrStreamClosed.
func (r *reader) readExact(n int, deadline time.Time) ([]byte, error) {
	buf := make([]byte, 0, min(n, maxReadChunk))
	buffered, _ := r.h.(api.Buffered)
	for {
		if len(buf) == n {
			return buf, nil
		}
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		now := time.Now()
		if now.After(deadline) {
			return nil, timeoutError(n, len(buf))
		}

		ready := buffered != nil && buffered.Buffered() > 0
		if !ready {
			var err error
			ready, err = r.poller.Wait(min(r.quantum, deadline.Sub(now)))
			if err != nil {
				return nil, fmt.Errorf("poll: %w", err)
			}
			if !ready {
				continue
			}
		}

		want := min(n-len(buf), maxReadChunk)
		buf = slices.Grow(buf, want)
		got, err := r.h.Read(buf[len(buf) : len(buf)+want])
		switch {
		case errors.Is(err, api.ErrWouldBlock):
			continue
		case err != nil:
			return nil, fmt.Errorf("read: %w", err)
		case got == 0:
			return buf, closedError(n, len(buf))
		}
		buf = buf[:len(buf)+got]
	}
}

// nextFrame reads one header and its payload. io.EOF reports closure at a
// frame boundary.
func (r *reader) nextFrame(deadline time.Time) (protocol.Frame, error) {
	hdr, err := r.readExact(protocol.HeaderLen, deadline)
	if err != nil {
		if errors.Is(err, api.ErrStreamClosed) {
			if len(hdr) == 0 {
				return protocol.Frame{}, io.EOF
			}
			return protocol.Frame{}, truncatedError(protocol.HeaderLen, len(hdr), "header")
		}
		return protocol.Frame{}, err
	}
	size := protocol.DecodeHeader(hdr)
	if (r.maxFrame > 0 && size > r.maxFrame) || uint64(size) > math.MaxInt {
		return protocol.Frame{}, api.Wrap(api.ErrCodeTooLarge, api.ErrFrameTooLarge).
			WithContext("declared", size).
			WithContext("limit", r.maxFrame)
	}

	payload, err := r.readExact(int(size), deadline)
	if err != nil {
		if errors.Is(err, api.ErrStreamClosed) {
			return protocol.Frame{}, truncatedError(int(size), len(payload), "payload")
		}
		return protocol.Frame{}, err
	}
	return protocol.Frame{Stream: protocol.StreamOf(hdr), Payload: payload}, nil
}

func timeoutError(want, have int) error {
	return (&api.Error{
		Code:    api.ErrCodeTimeout,
		Message: "timeout waiting for stream data",
		Err:     api.ErrOperationTimeout,
	}).WithContext("want", want).WithContext("have", have)
}

func closedError(want, have int) error {
	return api.Wrap(api.ErrCodeClosed, api.ErrStreamClosed).
		WithContext("want", want).
		WithContext("have", have)
}

func truncatedError(declared, received int, part string) error {
	return api.Wrap(api.ErrCodeTruncated, api.ErrTruncatedFrame).
		WithContext("part", part).
		WithContext("declared", declared).
		WithContext("received", received)
}
