//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based readiness poller.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-attach/api"
)

// epollPoller watches one descriptor, level-triggered, so a partial read
// leaves the descriptor ready for the next Wait.
type epollPoller struct {
	epfd       int
	fd         int
	registered bool
	closed     bool
	events     [1]unix.EpollEvent
}

// NewPoller constructs a new epoll instance.
func NewPoller() (api.Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollPoller{epfd: epfd, fd: -1}, nil
}

// Register adds fd to the epoll watch list.
func (p *epollPoller) Register(fd uintptr) error {
	if p.closed {
		return api.ErrPollerClosed
	}
	if p.registered {
		return api.NewError(api.ErrCodeInvalidArgument, "poller already has a registered descriptor").
			WithContext("fd", p.fd)
	}
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	p.fd = int(fd)
	p.registered = true
	return nil
}

// Wait blocks for at most timeout.
func (p *epollPoller) Wait(timeout time.Duration) (bool, error) {
	if p.closed {
		return false, api.ErrPollerClosed
	}
	n, err := unix.EpollWait(p.epfd, p.events[:], timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil // interrupted by signal, caller re-checks its deadline
		}
		return false, fmt.Errorf("epoll wait: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	const readable = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR
	return p.events[0].Events&readable != 0, nil
}

// Close deregisters the descriptor and releases the epoll fd.
func (p *epollPoller) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	var delErr error
	if p.registered {
		// The descriptor may already be closed by its owner; the kernel
		// drops it from the set in that case.
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, p.fd, nil); err != nil &&
			!errors.Is(err, unix.EBADF) && !errors.Is(err, unix.ENOENT) {
			delErr = fmt.Errorf("epoll ctl del: %w", err)
		}
		p.registered = false
	}
	if err := unix.Close(p.epfd); err != nil {
		return fmt.Errorf("epoll close: %w", err)
	}
	return delErr
}
