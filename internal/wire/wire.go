/*
Package wire implements the binary framing shared by every conversation
between a device and the node.

Every frame starts with a fixed 6-byte header: a 2-byte big-endian message
type followed by a 4-byte big-endian payload length, then exactly that many
payload bytes. The codec is transport-agnostic and tolerates arbitrary TCP
fragmentation: a Decoder buffers partial frames across reads and yields zero
or more complete frames per feed.
*/
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the fixed byte length of every frame header.
	HeaderSize = 6

	// MaxPayloadBytes caps the declared payload length a peer may announce.
	// A frame above the cap is a protocol violation and tears the
	// connection down.
	MaxPayloadBytes = 16 << 20
)

// ErrPayloadTooLarge reports a header whose declared length exceeds
// MaxPayloadBytes.
var ErrPayloadTooLarge = errors.New("wire: declared payload exceeds cap")

// Frame is one decoded unit off the stream. Kind carries the raw 2-byte
// message type; inbound frames read it as a RequestType, outbound frames
// are written from a ResponseType.
type Frame struct {
	Kind    uint16
	Payload []byte
}

// AppendFrame appends a framed message to dst and returns the extended
// buffer. The payload may be nil for header-only messages.
func AppendFrame(dst []byte, kind uint16, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, kind)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// EncodeFrame frames a message into a freshly allocated buffer sized for a
// single transport write.
func EncodeFrame(kind uint16, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), kind, payload)
}

// Decoder reassembles frames from a fragmented byte stream.
//
// Not safe for concurrent use. Each connection owns exactly one Decoder,
// fed from that connection's read loop.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed absorbs the next chunk read off the transport and returns every
// frame completed by it. Payloads are copied out of the internal buffer,
// so callers may retain them beyond the next Feed.
//
// A non-nil error means the stream is unrecoverable and the connection
// must be closed.
func (d *Decoder) Feed(chunk []byte) ([]Frame, error) {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		if len(d.buf) < HeaderSize {
			break
		}

		kind := binary.BigEndian.Uint16(d.buf[0:2])
		length := binary.BigEndian.Uint32(d.buf[2:HeaderSize])
		if length > MaxPayloadBytes {
			return frames, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, length)
		}

		total := HeaderSize + int(length)
		if len(d.buf) < total {
			// Header seen, payload still in flight.
			break
		}

		payload := make([]byte, length)
		copy(payload, d.buf[HeaderSize:total])
		frames = append(frames, Frame{Kind: kind, Payload: payload})

		d.buf = d.buf[total:]
	}

	// Release the backing array once the stream is fully drained so a
	// large burst does not pin memory for the connection's lifetime.
	if len(d.buf) == 0 {
		d.buf = nil
	}

	return frames, nil
}

// Buffered reports how many bytes of an incomplete frame are pending.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
