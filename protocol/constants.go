// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Attach-stream wire protocol constants

package protocol

// HeaderLen is the fixed size of a frame header.
const HeaderLen = 8

// StreamType is the channel tag carried in header byte 0.
type StreamType byte

const (
	Stdin     StreamType = 0
	Stdout    StreamType = 1
	Stderr    StreamType = 2
	SystemErr StreamType = 3
)

func (s StreamType) String() string {
	switch s {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	case SystemErr:
		return "systemerr"
	default:
		return "unknown"
	}
}
