//go:build unix

// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-attach/api"
)

// NetConn is a non-blocking view of a stream socket. Bytes that an upstream
// parser already pulled off the socket are served first, then reads go
// straight to a private duplicate of the descriptor.
type NetConn struct {
	fd     int
	prefix []byte
	owner  io.Closer
	closed bool
}

var (
	_ api.Handle   = (*NetConn)(nil)
	_ api.Buffered = (*NetConn)(nil)
)

// NewFDConn takes ownership of fd and switches it to non-blocking mode.
func NewFDConn(fd int) (*NetConn, error) {
	if fd < 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "negative descriptor").WithContext("fd", fd)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	return &NetConn{fd: fd}, nil
}

// FromConn duplicates the descriptor behind conn. buffered holds bytes already
// consumed from conn by a reader (e.g. the tail of an HTTP upgrade response).
// The returned NetConn owns conn and closes it together with the duplicate.
func FromConn(conn net.Conn, buffered []byte) (*NetConn, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("transport: %T exposes no descriptor: %w", conn, api.ErrNotSupported)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("syscall conn: %w", err)
	}
	dup := -1
	var dupErr error
	if err := raw.Control(func(fd uintptr) {
		dup, dupErr = unix.Dup(int(fd))
	}); err != nil {
		return nil, fmt.Errorf("raw control: %w", err)
	}
	if dupErr != nil {
		return nil, fmt.Errorf("dup: %w", dupErr)
	}
	unix.CloseOnExec(dup)
	nc, err := NewFDConn(dup)
	if err != nil {
		_ = unix.Close(dup)
		return nil, err
	}
	if len(buffered) > 0 {
		nc.prefix = append([]byte(nil), buffered...)
	}
	nc.owner = conn
	return nc, nil
}

// Read reads without blocking. (0, nil) means the peer closed the stream.
func (c *NetConn) Read(p []byte) (int, error) {
	if c.closed {
		return 0, api.ErrHandleClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if len(c.prefix) > 0 {
		n := copy(p, c.prefix)
		c.prefix = c.prefix[n:]
		return n, nil
	}
	for {
		n, err := unix.Read(c.fd, p)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, api.ErrWouldBlock
		case errors.Is(err, unix.ECONNRESET):
			return 0, nil
		default:
			return 0, fmt.Errorf("read fd %d: %w", c.fd, err)
		}
	}
}

// Buffered reports prefix bytes readable without polling.
func (c *NetConn) Buffered() int {
	return len(c.prefix)
}

// RawFD returns the duplicated descriptor.
func (c *NetConn) RawFD() uintptr {
	return uintptr(c.fd)
}

// Close releases the descriptor and the owning connection. Safe to call twice.
func (c *NetConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.prefix = nil
	var result *multierror.Error
	if err := unix.Close(c.fd); err != nil {
		result = multierror.Append(result, fmt.Errorf("close fd %d: %w", c.fd, err))
	}
	if c.owner != nil {
		if err := c.owner.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
