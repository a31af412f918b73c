package console

import "hash/crc32"

// FrameCapacity is the payload capacity of one console frame in bytes. The
// DUT firmware compiles the same constant into its console driver; the two
// definitions must match exactly.
const FrameCapacity = 2020

// Frame holds one chunk of a console message. Only the final frame of a
// message may hold fewer than FrameCapacity bytes.
type Frame struct {
	Payload []byte
}

// FrameCount returns the number of frames a payload of n bytes occupies.
// An empty payload still occupies a single empty frame.
func FrameCount(n int) int {
	if n == 0 {
		return 1
	}
	return (n + FrameCapacity - 1) / FrameCapacity
}

// SplitFrames copies payload into the caller's frames in order and returns
// the number of frames used. The capacity check happens before any frame is
// touched, so a FrameCapacityError leaves frames exactly as passed in.
func SplitFrames(payload []byte, frames []Frame) (int, error) {
	need := FrameCount(len(payload))
	if len(frames) < need {
		return 0, &FrameCapacityError{Need: need, Have: len(frames)}
	}
	for i := 0; i < need; i++ {
		start := i * FrameCapacity
		end := start + FrameCapacity
		if end > len(payload) {
			end = len(payload)
		}
		frames[i].Payload = append(frames[i].Payload[:0], payload[start:end]...)
	}
	return need, nil
}

// Checksum computes the CRC-32 (ISO-HDLC) of p. This is the reflected
// 0x04C11DB7 polynomial, which the standard library ships as the IEEE table.
func Checksum(p []byte) uint32 {
	return crc32.ChecksumIEEE(p)
}
