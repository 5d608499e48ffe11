package chatproto

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Info carries a positive server notice to a device.
type Info struct {
	Message    string
	Details    string
	OccurredAt *Timestamp
}

// NewInfo stamps an Info with the current UTC time.
func NewInfo(message, details string) *Info {
	return &Info{Message: message, Details: details, OccurredAt: NewTimestamp(time.Now().UTC())}
}

func (m *Info) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Message)
	b = appendString(b, 2, m.Details)
	b = appendTimestamp(b, 3, m.OccurredAt)
	return b
}

func (m *Info) Unmarshal(data []byte) error {
	return consumeNotice(data, &m.Message, &m.Details, &m.OccurredAt)
}

// Failure carries a negative server notice: a short machine code in Error
// plus a human-readable Details.
type Failure struct {
	Error      string
	Details    string
	OccurredAt *Timestamp
}

// NewFailure stamps a Failure with the current UTC time.
func NewFailure(code, details string) *Failure {
	return &Failure{Error: code, Details: details, OccurredAt: NewTimestamp(time.Now().UTC())}
}

func (m *Failure) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Error)
	b = appendString(b, 2, m.Details)
	b = appendTimestamp(b, 3, m.OccurredAt)
	return b
}

func (m *Failure) Unmarshal(data []byte) error {
	return consumeNotice(data, &m.Error, &m.Details, &m.OccurredAt)
}

// Info and Failure share a wire shape: two strings and a timestamp.
func consumeNotice(data []byte, first, second *string, at **Timestamp) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			*first = v
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			*second = v
			data = data[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			ts := new(Timestamp)
			if err := ts.Unmarshal(v); err != nil {
				return err
			}
			*at = ts
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
