package model

import (
	"time"

	"github.com/chatfabric/chat-node/internal/wire"
	"github.com/google/uuid"
)

// MessageDispatchCommand asks the registry to write one payload to every
// connection in the target participant's collective. Marker identifies
// the originating relay for delivery acknowledgement.
type MessageDispatchCommand struct {
	ParticipantIdentifier string
	Payload               []byte
	ResponseType          wire.ResponseType
	SentAt                time.Time
	Marker                string
}

// DeviceBroadcastCommand mirrors a payload to the participant's other
// devices, skipping the connection that produced it.
type DeviceBroadcastCommand struct {
	ParticipantIdentifier  string
	SourceUniqueIdentifier uuid.UUID
	ResponseType           wire.ResponseType
	Payload                []byte
}
