/*
Package storage persists identities, device registrations, and relayed
direct messages.

Two implementations exist: MySQL (sqlx) for production and an in-memory
variant for tests. Persistence is an audit trail, not a delivery gate:
callers log storage failures and keep the message moving.
*/
package storage

import (
	"context"
	"errors"

	"github.com/chatfabric/chat-node/internal/domain/model"
)

// ErrIdentityNotFound reports a lookup for a participant that has never
// been enrolled on any node backed by this database.
var ErrIdentityNotFound = errors.New("storage: identity not found")

// ParticipantRepository owns the identity and device tables.
type ParticipantRepository interface {
	// HasIdentity reports whether the participant already holds a
	// routing identity.
	HasIdentity(ctx context.Context, participantIdentifier string) (bool, error)

	// CreateIdentity persists a freshly minted routing identity for the
	// participant.
	CreateIdentity(ctx context.Context, routingIdentifier, participantIdentifier string) error

	// FetchIdentity resolves the stored pairing. Returns
	// ErrIdentityNotFound when the participant was never enrolled.
	FetchIdentity(ctx context.Context, participantIdentifier string) (*model.Identity, error)

	// AddDevice records one device of the participant's collective.
	AddDevice(ctx context.Context, participantIdentifier string, device model.DeviceDetails) error
}

// MessageRepository owns the direct message audit table.
type MessageRepository interface {
	// AddMessage appends one relayed message. The record's ID is
	// assigned by the store.
	AddMessage(ctx context.Context, record model.DirectMessageRecord) error

	// FetchParticipantMessages pages through messages addressed to the
	// participant, newest first.
	FetchParticipantMessages(ctx context.Context, participantIdentifier string, limit, offset int) ([]model.DirectMessageRecord, error)

	// RemoveParticipantMessage deletes one message addressed to the
	// participant. Unknown ids are a no-op.
	RemoveParticipantMessage(ctx context.Context, participantIdentifier string, messageID int64) error
}
