//go:build !unix

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-attach/api"
)

// NewPoller returns an error for unsupported platforms.
func NewPoller() (api.Poller, error) {
	return nil, fmt.Errorf("reactor: readiness polling: %w", api.ErrNotSupported)
}
