package chatproto

import "google.golang.org/protobuf/encoding/protowire"

// ContactType discriminates what kind of handle a ContactRequest carries.
type ContactType int32

const (
	ContactTypeEmail ContactType = iota
	ContactTypePhone
)

// ContactRequest asks whether one address-book entry is a participant.
type ContactRequest struct {
	Type  ContactType
	Value string
}

func (m *ContactRequest) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Type))
	b = appendString(b, 2, m.Value)
	return b
}

func (m *ContactRequest) Unmarshal(data []byte) error {
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
			m.Type = ContactType(v)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Value = v
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

// BatchContactMatchRequest bundles the client's address book probe.
type BatchContactMatchRequest struct {
	Requests []*ContactRequest
}

func (m *BatchContactMatchRequest) Marshal() []byte {
	var b []byte
	for _, r := range m.Requests {
		b = appendMessage(b, 1, r.Marshal())
	}
	return b
}

func (m *BatchContactMatchRequest) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r := new(ContactRequest)
			if err := r.Unmarshal(v); err != nil {
				return err
			}
			m.Requests = append(m.Requests, r)
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

// Contact is one resolved address-book match. Only the routing identity is
// exposed to other devices, never the participant identifier.
type Contact struct {
	RoutingIdentifier string
	Nickname          string
	PhotoURL          string
}

func (m *Contact) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.RoutingIdentifier)
	b = appendString(b, 2, m.Nickname)
	b = appendString(b, 3, m.PhotoURL)
	return b
}

func (m *Contact) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if typ == protowire.BytesType && num >= 1 && num <= 3 {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			switch num {
			case 1:
				m.RoutingIdentifier = v
			case 2:
				m.Nickname = v
			case 3:
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

// BatchContactMatchResponse returns the resolved subset; unmatched
// requests are omitted without comment.
type BatchContactMatchResponse struct {
	Contacts []*Contact
}

func (m *BatchContactMatchResponse) Marshal() []byte {
	var b []byte
	for _, c := range m.Contacts {
		b = appendMessage(b, 1, c.Marshal())
	}
	return b
}

func (m *BatchContactMatchResponse) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			c := new(Contact)
			if err := c.Unmarshal(v); err != nil {
				return err
			}
			m.Contacts = append(m.Contacts, c)
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
