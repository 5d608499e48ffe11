// Package model holds the domain types shared by the registry, the
// participant service, and the storage contracts.
package model

import "github.com/chatfabric/chat-node/internal/chatproto"

// Participant is a human account as this node sees it. Identifier comes
// from the account service; RoutingIdentifier is minted here on first
// sight and is the only identity other devices and nodes get to learn.
type Participant struct {
	Identifier        string
	RoutingIdentifier string
	Nickname          string
	Email             string
	PhotoURL          string
}

// Identity is the persisted pairing between a participant identifier and
// its routing identity. Stable for the participant's lifetime.
type Identity struct {
	ID                    int64
	ParticipantIdentifier string
	RoutingIdentifier     string
}

// DeviceDetails describes one endpoint of a participant's collective.
type DeviceDetails struct {
	Name            string
	OperatingSystem string
	Version         string
	IPAddress       string
}

// DeviceFromWire lifts the identification submessage into the domain.
func DeviceFromWire(d *chatproto.Device) DeviceDetails {
	if d == nil {
		return DeviceDetails{}
	}
	return DeviceDetails{
		Name:            d.Name,
		OperatingSystem: d.OperatingSystem,
		Version:         d.Version,
		IPAddress:       d.IPAddress,
	}
}
