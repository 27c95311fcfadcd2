// Package stream
// Author: momentics <momentics@gmail.com>
//
// Deadline-bounded demultiplexing of attach streams.
//
// A session owns one non-blocking api.Handle and one api.Poller with that
// handle's descriptor registered. It reads whole frames by alternating short
// readiness waits with non-blocking reads, and fails once the absolute
// deadline fixed at session start has passed. Closure of the stream between
// frames ends the session cleanly; closure inside a frame is reported as
// api.ErrTruncatedFrame.
//
// Payloads are exposed either through Session.Next or as a range-over-func
// sequence (Stream, Frames). Breaking out of a range loop releases the
// poller and the handle.
package stream
