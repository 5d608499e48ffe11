package chatproto

import "google.golang.org/protobuf/encoding/protowire"

// Device describes the client endpoint presenting an identity.
type Device struct {
	Name            string
	OperatingSystem string
	Version         string
	IPAddress       string
}

func (m *Device) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.OperatingSystem)
	b = appendString(b, 3, m.Version)
	b = appendString(b, 4, m.IPAddress)
	return b
}

func (m *Device) Unmarshal(data []byte) error {
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
				m.Name = v
			case 2:
				m.OperatingSystem = v
			case 3:
				m.Version = v
			case 4:
				m.IPAddress = v
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

// Identification is the payload of an IDENTITY request: the encrypted
// bearer token plus the device presenting it.
type Identification struct {
	Token  string
	Device *Device
}

func (m *Identification) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Token)
	if m.Device != nil {
		b = appendMessage(b, 2, m.Device.Marshal())
	}
	return b
}

func (m *Identification) Unmarshal(data []byte) error {
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
			m.Token = v
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Device = new(Device)
			if err := m.Device.Unmarshal(v); err != nil {
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
