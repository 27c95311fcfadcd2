//go:build unix && !linux

// File: reactor/reactor_poll.go
// Author: momentics <momentics@gmail.com>
//
// poll(2)-based readiness poller for BSDs and macOS.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-attach/api"
)

type pollPoller struct {
	fds    []unix.PollFd
	closed bool
}

// NewPoller constructs a poll(2)-backed poller. poll keeps no kernel
// state, so registration only records the descriptor.
func NewPoller() (api.Poller, error) {
	return &pollPoller{}, nil
}

func (p *pollPoller) Register(fd uintptr) error {
	if p.closed {
		return api.ErrPollerClosed
	}
	if len(p.fds) != 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "poller already has a registered descriptor").
			WithContext("fd", p.fds[0].Fd)
	}
	p.fds = []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	return nil
}

func (p *pollPoller) Wait(timeout time.Duration) (bool, error) {
	if p.closed {
		return false, api.ErrPollerClosed
	}
	if len(p.fds) == 0 {
		return false, api.NewError(api.ErrCodeInvalidArgument, "no descriptor registered")
	}
	p.fds[0].Revents = 0
	n, err := unix.Poll(p.fds, timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	return p.fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0, nil
}

func (p *pollPoller) Close() error {
	p.closed = true
	p.fds = nil
	return nil
}
