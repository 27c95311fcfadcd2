// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the handle and poller contracts.

package fake

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-attach/api"
)

type stepKind int

const (
	stepData stepKind = iota
	stepStall
	stepHangup
	stepError
)

type step struct {
	kind  stepKind
	data  []byte
	polls int
	err   error
}

// Handle is a scripted api.Handle. Steps are consumed in order: data chunks
// become readable one at a time, stalls report not-ready for a number of
// polls, a hangup makes every later read return zero bytes. With an empty
// script the handle is simply never ready.
type Handle struct {
	mu      sync.Mutex
	fd      uintptr
	steps   *queue.Queue
	maxRead int
	reads   int
	closes  int
}

var _ api.Handle = (*Handle)(nil)

var nextFD atomic.Uintptr

// NewHandle creates an empty scripted handle.
func NewHandle() *Handle {
	return &Handle{fd: 1000 + nextFD.Add(1), steps: queue.New()}
}

// LimitRead caps the number of bytes a single Read returns.
func (h *Handle) LimitRead(n int) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maxRead = n
	return h
}

// Feed queues one readable chunk.
func (h *Handle) Feed(data []byte) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps.Add(&step{kind: stepData, data: append([]byte(nil), data...)})
	return h
}

// FeedChunked queues data split into chunks of at most size bytes.
func (h *Handle) FeedChunked(data []byte, size int) *Handle {
	if size <= 0 {
		size = 1
	}
	for len(data) > 0 {
		n := min(size, len(data))
		h.Feed(data[:n])
		data = data[n:]
	}
	return h
}

// Stall makes the next polls report not-ready.
func (h *Handle) Stall(polls int) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps.Add(&step{kind: stepStall, polls: polls})
	return h
}

// Hangup simulates the peer closing the stream.
func (h *Handle) Hangup() *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps.Add(&step{kind: stepHangup})
	return h
}

// Fail makes the next read return err.
func (h *Handle) Fail(err error) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps.Add(&step{kind: stepError, err: err})
	return h
}

// Ready reports readiness and consumes one poll of a pending stall.
func (h *Handle) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.steps.Length() == 0 {
		return false
	}
	s := h.steps.Peek().(*step)
	if s.kind == stepStall {
		s.polls--
		if s.polls <= 0 {
			h.steps.Remove()
		}
		return false
	}
	return true
}

// Read implements api.Handle.
func (h *Handle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads++
	if h.closes > 0 {
		return 0, api.ErrHandleClosed
	}
	if h.steps.Length() == 0 {
		return 0, api.ErrWouldBlock
	}
	s := h.steps.Peek().(*step)
	switch s.kind {
	case stepHangup:
		return 0, nil
	case stepError:
		h.steps.Remove()
		return 0, s.err
	case stepStall:
		return 0, api.ErrWouldBlock
	}
	limit := len(p)
	if h.maxRead > 0 && h.maxRead < limit {
		limit = h.maxRead
	}
	n := copy(p[:limit], s.data)
	s.data = s.data[n:]
	if len(s.data) == 0 {
		h.steps.Remove()
	}
	return n, nil
}

// Close implements api.Handle.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

// RawFD implements api.Handle.
func (h *Handle) RawFD() uintptr {
	return h.fd
}

// Closes returns how many times Close was called.
func (h *Handle) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

// Reads returns how many times Read was called.
func (h *Handle) Reads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reads
}
