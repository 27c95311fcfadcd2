// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package transport adapts Go network connections into non-blocking
// api.Handle values whose raw descriptor can be driven by a reactor poller.
package transport
