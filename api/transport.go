// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the non-blocking handle abstraction consumed by the stream reader.

package api

// Handle abstracts a readable, non-blocking connection whose descriptor
// can be registered with a Poller.
type Handle interface {
	// Read reads up to len(p) bytes without blocking.
	// It returns (0, nil) when the peer has closed the stream and
	// ErrWouldBlock when no data is available yet.
	Read(p []byte) (n int, err error)

	// Close shuts down the handle and releases resources it owns.
	Close() error

	// RawFD returns the underlying OS-level file descriptor.
	RawFD() uintptr
}

// Buffered is implemented by handles that may hold bytes already read off
// the descriptor (e.g. by an HTTP response parser). Those bytes are
// readable without polling.
type Buffered interface {
	Buffered() int
}
