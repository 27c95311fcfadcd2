// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the multiplexed attach-stream wire format used by container
// runtimes to interleave stdin/stdout/stderr over one connection.
//
// Each frame is an 8-byte header followed by its payload:
//   - byte 0: stream (channel) tag
//   - bytes 1..3: reserved
//   - bytes 4..7: payload length, big-endian uint32
//
// The codec is pure: it never performs I/O and never sees partial headers.
package protocol
