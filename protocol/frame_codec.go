// File: protocol/frame_codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Header decoding/encoding for attach-stream frames.

package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame is one decoded header-plus-payload unit.
type Frame struct {
	Stream  StreamType
	Payload []byte
}

// DecodeHeader returns the payload length declared by an assembled header.
// Bytes 0..3 are accepted as-is. Passing anything other than HeaderLen
// bytes is a programming error and panics.
func DecodeHeader(header []byte) uint32 {
	if len(header) != HeaderLen {
		panic(fmt.Sprintf("protocol: header must be %d bytes, got %d", HeaderLen, len(header)))
	}
	return binary.BigEndian.Uint32(header[4:HeaderLen])
}

// StreamOf returns the channel tag of an assembled header.
func StreamOf(header []byte) StreamType {
	if len(header) != HeaderLen {
		panic(fmt.Sprintf("protocol: header must be %d bytes, got %d", HeaderLen, len(header)))
	}
	return StreamType(header[0])
}

// EncodeHeader writes a header for a payload of length n into a new array.
func EncodeHeader(stream StreamType, n uint32) [HeaderLen]byte {
	var hdr [HeaderLen]byte
	hdr[0] = byte(stream)
	binary.BigEndian.PutUint32(hdr[4:], n)
	return hdr
}

// AppendFrame appends a complete frame (header and payload) to dst.
func AppendFrame(dst []byte, stream StreamType, payload []byte) []byte {
	hdr := EncodeHeader(stream, uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}
