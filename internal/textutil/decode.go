package textutil

import "unicode/utf8"

// StreamDecoder incrementally decodes a UTF-8 byte stream that may be split
// at arbitrary byte offsets. Bytes that end mid-sequence are carried over to
// the next Decode call, so feeding a valid stream one byte at a time produces
// the same text as decoding it whole.
type StreamDecoder struct {
	carry []byte
}

// Decode appends chunk to any carried-over bytes and returns the longest
// cleanly decodable prefix as a string. A trailing incomplete sequence
// (at most utf8.UTFMax-1 bytes) is retained for the next call.
func (d *StreamDecoder) Decode(chunk []byte) string {
	if len(chunk) == 0 && len(d.carry) == 0 {
		return ""
	}

	buf := chunk
	if len(d.carry) > 0 {
		buf = append(d.carry, chunk...)
		d.carry = nil
	}

	cut := incompleteTailStart(buf)
	if cut < len(buf) {
		d.carry = append([]byte(nil), buf[cut:]...)
		buf = buf[:cut]
	}
	return string(buf)
}

// Flush returns whatever bytes remain in the carry buffer, decoded leniently.
// A non-empty result indicates the stream ended mid-sequence; the bytes are
// surfaced as replacement runes rather than dropped silently.
func (d *StreamDecoder) Flush() string {
	if len(d.carry) == 0 {
		return ""
	}
	out := string(d.carry)
	d.carry = nil
	return out
}

// Pending reports the number of carried-over bytes awaiting completion.
func (d *StreamDecoder) Pending() int {
	return len(d.carry)
}

// incompleteTailStart returns the index where a trailing incomplete UTF-8
// sequence begins, or len(buf) when the buffer ends on a rune boundary.
// Only the final utf8.UTFMax-1 bytes can belong to an unfinished rune;
// malformed bytes further back are left in place for the caller to decode
// as replacement runes.
func incompleteTailStart(buf []byte) int {
	n := len(buf)
	for back := 1; back < utf8.UTFMax && back <= n; back++ {
		i := n - back
		b := buf[i]
		if b < utf8.RuneSelf {
			return n
		}
		if b&0xC0 == 0x80 {
			// Continuation byte, keep scanning for the sequence start.
			continue
		}
		// Found the start byte of the trailing sequence.
		size := sequenceLength(b)
		if size == 0 || size <= back {
			// Invalid or already complete; nothing to carry.
			return n
		}
		return i
	}
	return n
}

func sequenceLength(b byte) int {
	switch {
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}
