// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral helpers shared by the readiness pollers.

package reactor

import (
	"time"

	"github.com/momentics/hioload-attach/api"
)

// Ensure the factory matches the api contract.
var _ api.PollerFactory = NewPoller

// timeoutMillis converts a wait duration into the millisecond argument of
// epoll_wait/poll. Sub-millisecond positive waits round up to 1ms so a short
// remaining deadline still blocks instead of spinning.
func timeoutMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > 1<<31-1 {
		return 1<<31 - 1
	}
	return int(ms)
}
