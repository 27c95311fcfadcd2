// Package docker
// Author: momentics <momentics@gmail.com>
//
// Minimal Docker Engine client: daemon ping and container attach. Attach
// upgrades the HTTP connection to the raw multiplexed stream and hands the
// socket to the stream package as a non-blocking handle, so container output
// can be read with a hard wall-clock bound.
package docker
