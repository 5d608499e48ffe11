package chatproto

import "google.golang.org/protobuf/encoding/protowire"

// DirectMessage is a participant-to-participant payload. TargetIdentifier
// is a routing identity: outbound it names the recipient, inbound (as
// delivered to a device) it names the sender so the device can reply.
type DirectMessage struct {
	TargetIdentifier string
	Payload          []byte
	SentAt           *Timestamp
}

func (m *DirectMessage) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.TargetIdentifier)
	b = appendBytes(b, 2, m.Payload)
	b = appendTimestamp(b, 3, m.SentAt)
	return b
}

func (m *DirectMessage) Unmarshal(data []byte) error {
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
			m.TargetIdentifier = v
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Payload = append([]byte(nil), v...)
			data = data[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.SentAt = new(Timestamp)
			if err := m.SentAt.Unmarshal(v); err != nil {
				return err
			}
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

// DeliveryState tracks how far a relayed message got.
type DeliveryState int32

const (
	DeliverySent DeliveryState = iota
	DeliveryDelivered
	DeliveryRead
	DeliveryFailed
)

func (s DeliveryState) String() string {
	switch s {
	case DeliverySent:
		return "SENT"
	case DeliveryDelivered:
		return "DELIVERED"
	case DeliveryRead:
		return "READ"
	case DeliveryFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Delivery acknowledges a relayed DirectMessage back to its sender. Marker
// echoes the per-message UUID minted by the relaying node.
type Delivery struct {
	Message          string
	State            DeliveryState
	Marker           string
	TargetIdentifier string
	SentAt           *Timestamp
}

func (m *Delivery) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Message)
	b = appendVarint(b, 2, uint64(m.State))
	b = appendString(b, 3, m.Marker)
	b = appendString(b, 4, m.TargetIdentifier)
	b = appendTimestamp(b, 5, m.SentAt)
	return b
}

func (m *Delivery) Unmarshal(data []byte) error {
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
			m.Message = v
			data = data[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.State = DeliveryState(v)
			data = data[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Marker = v
			data = data[n:]
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.TargetIdentifier = v
			data = data[n:]
		case num == 5 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.SentAt = new(Timestamp)
			if err := m.SentAt.Unmarshal(v); err != nil {
				return err
			}
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
