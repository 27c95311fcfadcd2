// Package api
// Author: momentics
//
// Readiness-polling abstraction for a single non-blocking handle.

package api

import "time"

// Poller reports read readiness of exactly one registered descriptor.
// A Poller is owned by one streaming session and is not safe for concurrent use.
type Poller interface {
	// Register adds fd to the interest set. A second registration fails.
	Register(fd uintptr) error

	// Wait blocks for at most timeout and reports whether the registered
	// descriptor is readable (or hung up, which reads as closure).
	// A zero timeout polls without blocking.
	Wait(timeout time.Duration) (ready bool, err error)

	// Close deregisters the descriptor and releases the poller.
	// It does not close the registered descriptor.
	Close() error
}

// PollerFactory constructs a fresh Poller for a session.
type PollerFactory func() (Poller, error)
