//go:build !unix

// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package transport

import (
	"fmt"
	"net"

	"github.com/momentics/hioload-attach/api"
)

// NetConn has no descriptor-backed implementation on this platform. Every
// constructor fails with api.ErrNotSupported, so no usable value exists.
type NetConn struct{}

var (
	_ api.Handle   = (*NetConn)(nil)
	_ api.Buffered = (*NetConn)(nil)
)

func errNoDescriptors() error {
	return fmt.Errorf("transport: raw descriptors: %w", api.ErrNotSupported)
}

// NewFDConn is not available without unix descriptors.
func NewFDConn(fd int) (*NetConn, error) {
	return nil, errNoDescriptors()
}

// FromConn is not available without unix descriptors.
func FromConn(conn net.Conn, buffered []byte) (*NetConn, error) {
	return nil, errNoDescriptors()
}

func (c *NetConn) Read(p []byte) (int, error) { return 0, errNoDescriptors() }
func (c *NetConn) Buffered() int              { return 0 }
func (c *NetConn) RawFD() uintptr             { return ^uintptr(0) }
func (c *NetConn) Close() error               { return nil }
