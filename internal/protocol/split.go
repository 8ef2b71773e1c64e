package protocol

import (
	"bytes"
	"encoding/hex"
	"strings"
)

// SplitFrames extracts frame candidates from a raw receive buffer.
//
// Each candidate runs from a 0x68 byte to the first 0x16 after it,
// inclusive. Candidates do not overlap and are returned in buffer order.
// Nothing is validated here: a 0x16 inside a payload or CRC ends the
// candidate early, and Verify will reject it. The input is never modified
// and the returned slices are copies.
func SplitFrames(buf []byte) [][]byte {
	frames, _ := SplitStream(buf)
	return frames
}

// SplitStream is SplitFrames for data arriving in pieces. rest is the
// unterminated tail starting at the last unmatched 0x68, or nil; prepend
// it to the next read to recover a frame cut across two reads.
func SplitStream(buf []byte) (frames [][]byte, rest []byte) {
	i := 0
	for i < len(buf) {
		start := bytes.IndexByte(buf[i:], StartByte)
		if start < 0 {
			return frames, nil
		}
		start += i

		end := bytes.IndexByte(buf[start+1:], EndByte)
		if end < 0 {
			return frames, bytes.Clone(buf[start:])
		}
		end += start + 1

		frames = append(frames, bytes.Clone(buf[start:end+1]))
		i = end + 1
	}
	return frames, nil
}

// ContainsMarker reports whether the hex encoding of frame contains marker.
// Matching happens on the hex text, not on bytes, so a marker may start
// in the middle of a byte (the thermostat marker does). Case is ignored;
// an empty marker matches every frame.
func ContainsMarker(frame []byte, marker string) bool {
	if marker == "" {
		return true
	}
	return strings.Contains(hex.EncodeToString(frame), strings.ToLower(marker))
}
