// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-attach/api"
)

// Poller is an api.Poller bound to a scripted Handle. Waiting on a
// not-ready handle sleeps for the full timeout, like a real poll would.
type Poller struct {
	mu         sync.Mutex
	handle     *Handle
	registered bool
	closes     int
	waits      int
}

var _ api.Poller = (*Poller)(nil)

// NewPoller creates a poller that reports readiness of h.
func NewPoller(h *Handle) *Poller {
	return &Poller{handle: h}
}

// Factory returns a PollerFactory that records every poller it creates.
func Factory(h *Handle, created *[]*Poller) api.PollerFactory {
	return func() (api.Poller, error) {
		p := NewPoller(h)
		if created != nil {
			*created = append(*created, p)
		}
		return p, nil
	}
}

// Register implements api.Poller.
func (p *Poller) Register(fd uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closes > 0 {
		return api.ErrPollerClosed
	}
	if p.registered {
		return api.NewError(api.ErrCodeInvalidArgument, "poller already has a registered descriptor")
	}
	if fd != p.handle.RawFD() {
		return api.NewError(api.ErrCodeInvalidArgument, "unknown descriptor").WithContext("fd", fd)
	}
	p.registered = true
	return nil
}

// Wait implements api.Poller.
func (p *Poller) Wait(timeout time.Duration) (bool, error) {
	p.mu.Lock()
	if p.closes > 0 {
		p.mu.Unlock()
		return false, api.ErrPollerClosed
	}
	p.waits++
	p.mu.Unlock()

	if p.handle.Ready() {
		return true, nil
	}
	if timeout > 0 {
		time.Sleep(timeout)
	}
	return false, nil
}

// Close implements api.Poller.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = false
	p.closes++
	return nil
}

// Registered reports whether a descriptor is still registered.
func (p *Poller) Registered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered
}

// Closes returns how many times Close was called.
func (p *Poller) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// Waits returns how many times Wait was called.
func (p *Poller) Waits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits
}
