package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/chatfabric/chat-node/internal/domain/model"
)

// Interface guards
var (
	_ ParticipantRepository = (*MemoryParticipantRepository)(nil)
	_ MessageRepository     = (*MemoryMessageRepository)(nil)
)

// MemoryParticipantRepository keeps identities and devices in maps. It
// backs the test suites.
type MemoryParticipantRepository struct {
	mu         sync.Mutex
	nextID     int64
	identities map[string]*model.Identity
	devices    map[string][]model.DeviceDetails
}

func NewMemoryParticipantRepository() *MemoryParticipantRepository {
	return &MemoryParticipantRepository{
		identities: make(map[string]*model.Identity),
		devices:    make(map[string][]model.DeviceDetails),
	}
}

func (r *MemoryParticipantRepository) HasIdentity(_ context.Context, participantIdentifier string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.identities[participantIdentifier]
	return ok, nil
}

func (r *MemoryParticipantRepository) CreateIdentity(_ context.Context, routingIdentifier, participantIdentifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.identities[participantIdentifier] = &model.Identity{
		ID:                    r.nextID,
		ParticipantIdentifier: participantIdentifier,
		RoutingIdentifier:     routingIdentifier,
	}
	return nil
}

func (r *MemoryParticipantRepository) FetchIdentity(_ context.Context, participantIdentifier string) (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[participantIdentifier]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	copied := *identity
	return &copied, nil
}

func (r *MemoryParticipantRepository) AddDevice(_ context.Context, participantIdentifier string, device model.DeviceDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.identities[participantIdentifier]; !ok {
		return ErrIdentityNotFound
	}
	r.devices[participantIdentifier] = append(r.devices[participantIdentifier], device)
	return nil
}

// Devices reports the recorded devices of one participant.
func (r *MemoryParticipantRepository) Devices(participantIdentifier string) []model.DeviceDetails {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.DeviceDetails, len(r.devices[participantIdentifier]))
	copy(out, r.devices[participantIdentifier])
	return out
}

// MemoryMessageRepository keeps the message audit trail in a slice.
type MemoryMessageRepository struct {
	mu      sync.Mutex
	nextID  int64
	records []model.DirectMessageRecord

	// routing identifier → participant identifier, mirroring the FK
	// resolution the SQL variant performs.
	owners map[string]string
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{owners: make(map[string]string)}
}

// BindRoute teaches the repository which participant owns a routing
// identity so target-scoped reads resolve like the SQL joins do.
func (r *MemoryMessageRepository) BindRoute(routingIdentifier, participantIdentifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[routingIdentifier] = participantIdentifier
}

func (r *MemoryMessageRepository) AddMessage(_ context.Context, record model.DirectMessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	record.ID = r.nextID
	r.records = append(r.records, record)
	return nil
}

func (r *MemoryMessageRepository) FetchParticipantMessages(_ context.Context, participantIdentifier string, limit, offset int) ([]model.DirectMessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.DirectMessageRecord, 0)
	for _, record := range r.records {
		if r.owners[record.Target] == participantIdentifier {
			matched = append(matched, record)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ReceivedAt.Equal(matched[j].ReceivedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
	})

	if offset >= len(matched) {
		return []model.DirectMessageRecord{}, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryMessageRepository) RemoveParticipantMessage(_ context.Context, participantIdentifier string, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[:0]
	for _, record := range r.records {
		if record.ID == messageID && r.owners[record.Target] == participantIdentifier {
			continue
		}
		kept = append(kept, record)
	}
	r.records = kept
	return nil
}

// All reports every stored record in insertion order.
func (r *MemoryMessageRepository) All() []model.DirectMessageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.DirectMessageRecord, len(r.records))
	copy(out, r.records)
	return out
}
