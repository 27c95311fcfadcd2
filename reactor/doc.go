// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides single-descriptor readiness pollers: epoll on Linux,
// poll(2) on other unix platforms. Each poller watches exactly one descriptor
// for read readiness and is owned by a single streaming session.
package reactor
