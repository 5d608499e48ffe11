/*
Package chatproto holds the payload submessages carried inside wire frames
and across the cluster bus.

The encoding is the protocol-buffer wire format, produced and consumed
directly through protowire so the byte layout stays compatible with the
schema-compiled clients on the other end of the socket. Field numbers are
part of the protocol contract and must never be reused. Unknown fields are
skipped on decode, which lets older nodes coexist with newer schemas.
*/
package chatproto

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Timestamp mirrors google.protobuf.Timestamp.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// NewTimestamp converts a time.Time into its wire representation.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts back to time.Time in UTC. A nil Timestamp yields the zero
// time so callers can pass optional fields through without guarding.
func (ts *Timestamp) Time() time.Time {
	if ts == nil {
		return time.Time{}
	}
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

func (ts *Timestamp) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(ts.Seconds))
	b = appendVarint(b, 2, uint64(ts.Nanos))
	return b
}

func (ts *Timestamp) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			ts.Seconds = int64(v)
			data = data[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			ts.Nanos = int32(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// Append helpers. Proto3 scalar semantics: zero values stay off the wire.

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendTimestamp(b []byte, num protowire.Number, ts *Timestamp) []byte {
	if ts == nil {
		return b
	}
	return appendMessage(b, num, ts.marshal())
}
