package chatproto

import "google.golang.org/protobuf/encoding/protowire"

// ParticipantPassOver hands a direct message across nodes when the target
// participant is attached elsewhere. Identifiers are routing identities.
type ParticipantPassOver struct {
	SenderIdentifier string
	TargetIdentifier string
	OriginatingNode  string
	Payload          []byte
	Marker           string
	Nickname         string
}

func (m *ParticipantPassOver) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.SenderIdentifier)
	b = appendString(b, 2, m.TargetIdentifier)
	b = appendString(b, 3, m.OriginatingNode)
	b = appendBytes(b, 4, m.Payload)
	b = appendString(b, 5, m.Marker)
	b = appendString(b, 6, m.Nickname)
	return b
}

func (m *ParticipantPassOver) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if typ != protowire.BytesType || num < 1 || num > 6 {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}
		if num == 4 {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Payload = append([]byte(nil), v...)
			data = data[n:]
			continue
		}
		v, n := protowire.ConsumeString(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			m.SenderIdentifier = v
		case 2:
			m.TargetIdentifier = v
		case 3:
			m.OriginatingNode = v
		case 5:
			m.Marker = v
		case 6:
			m.Nickname = v
		}
	}
	return nil
}

// NodeJoined announces a node's arrival on the advisory subject.
type NodeJoined struct {
	Identifier string
}

func (m *NodeJoined) Marshal() []byte {
	return appendString(nil, 1, m.Identifier)
}

func (m *NodeJoined) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Identifier = v
			data = data[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
	}
	return nil
}

// DetailsRequest asks the account service for one participant's profile
// over the bus request/reply subject.
type DetailsRequest struct {
	Identifier string
}

func (m *DetailsRequest) Marshal() []byte {
	return appendString(nil, 1, m.Identifier)
}

func (m *DetailsRequest) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Identifier = v
			data = data[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
	}
	return nil
}

// Details is the account service's reply.
type Details struct {
	Identifier string
	Nickname   string
	Email      string
	PhotoURL   string
}

func (m *Details) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Identifier)
	b = appendString(b, 2, m.Nickname)
	b = appendString(b, 3, m.Email)
	b = appendString(b, 4, m.PhotoURL)
	return b
}

func (m *Details) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if typ == protowire.BytesType && num >= 1 && num <= 4 {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			switch num {
			case 1:
				m.Identifier = v
			case 2:
				m.Nickname = v
			case 3:
				m.Email = v
			case 4:
				m.PhotoURL = v
			}
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
	}
	return nil
}
