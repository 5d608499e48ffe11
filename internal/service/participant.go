/*
Package service holds the participant-facing business logic: profile
resolution, routing identity allocation, contact matching, and the relay
that moves direct messages between collectives and across nodes.

Key architectural concepts:
  - Cache-aside identity resolution: participant profiles are resolved
    once, cached in memory, and announced to the fabric so peer nodes can
    route to this one.
  - Routing identities: the account identifier never crosses the wire to
    other participants. A participant is addressed by a routing identity
    minted on first sight and stable for life.
  - Relay: local targets are dispatched through the command bus into
    their collective; remote targets are passed over the fabric to the
    node that last claimed them.
*/
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chatfabric/chat-node/internal/bus"
	"github.com/chatfabric/chat-node/internal/command"
	"github.com/chatfabric/chat-node/internal/domain/model"
	"github.com/chatfabric/chat-node/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Config carries the node-scoped settings the service needs.
type Config struct {
	// Node is this node's name on the fabric, stamped into pass-over
	// events and persisted message rows.
	Node string
}

// Relayer is the transport-facing contract. A non-nil error from either
// method is a protocol violation; the transport closes the connection
// without a response. Delivery-path failures are reported to the sender
// in-band as Delivery(FAILED) and never surface here.
type Relayer interface {
	RelayDirectMessage(ctx context.Context, senderIdentifier string, payload []byte) error
	ResolveContacts(ctx context.Context, payload []byte) ([]byte, error)
}

// AccountDirectory resolves participant profiles from the account
// service.
type AccountDirectory interface {
	FetchDetails(ctx context.Context, identifier string) (*model.Participant, error)
}

// Interface guard
var _ Relayer = (*ParticipantService)(nil)

// ParticipantService implements enrollment, lookups, and the relay.
type ParticipantService struct {
	cfg          Config
	logger       *slog.Logger
	dispatcher   command.Dispatcher
	participants storage.ParticipantRepository
	messages     storage.MessageRepository
	fabric       bus.Client
	directory    AccountDirectory

	// [HOT_STATE]
	// online: participant identifier → profile (cache-aside).
	// contactPairing: email → participant identifier.
	// routePairing: routing identity → participant identifier.
	mu             sync.RWMutex
	online         map[string]*model.Participant
	contactPairing map[string]string
	routePairing   map[string]string

	// flight collapses concurrent first-sight lookups for the same
	// participant into one directory call and one identity mint.
	flight singleflight.Group

	// dispatchMu serializes command issue so two relays toward the same
	// collective keep their order into the mailbox.
	dispatchMu sync.Mutex
}

func NewParticipantService(
	cfg Config,
	logger *slog.Logger,
	dispatcher command.Dispatcher,
	participants storage.ParticipantRepository,
	messages storage.MessageRepository,
	fabric bus.Client,
	directory AccountDirectory,
) *ParticipantService {
	s := &ParticipantService{
		cfg:            cfg,
		logger:         logger,
		dispatcher:     dispatcher,
		participants:   participants,
		messages:       messages,
		fabric:         fabric,
		directory:      directory,
		online:         make(map[string]*model.Participant),
		contactPairing: make(map[string]string),
		routePairing:   make(map[string]string),
	}

	// Subscriptions are declared up front; the transport applies them on
	// connect and re-applies them across reconnects.
	passOverDecode, passOverHandle := bus.Bind(logger, "participant-service", s.onPassOver)
	fabric.RegisterSubscriptionHandler(bus.PassOverSubject(cfg.Node), passOverDecode, passOverHandle, "participant-service")

	joinedDecode, joinedHandle := bus.Bind(logger, "participant-service", s.onNodeJoined)
	fabric.RegisterSubscriptionHandler(bus.SubjectNodeJoined, joinedDecode, joinedHandle, "participant-service")

	return s
}

// Fetch resolves a participant profile, minting and persisting a routing
// identity on first sight and announcing the claim to the fabric.
func (s *ParticipantService) Fetch(ctx context.Context, identifier string) (*model.Participant, error) {
	s.mu.RLock()
	cached, ok := s.online[identifier]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	resolved, err, _ := s.flight.Do(identifier, func() (any, error) {
		return s.resolve(ctx, identifier)
	})
	if err != nil {
		return nil, err
	}
	return resolved.(*model.Participant), nil
}

func (s *ParticipantService) resolve(ctx context.Context, identifier string) (*model.Participant, error) {
	participant, err := s.directory.FetchDetails(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("participant lookup: %w", err)
	}

	has, err := s.participants.HasIdentity(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("identity check: %w", err)
	}

	if has {
		identity, err := s.participants.FetchIdentity(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("identity fetch: %w", err)
		}
		participant.RoutingIdentifier = identity.RoutingIdentifier
	} else {
		// [FIRST_SIGHT] Routing identity minted once, kept for life.
		participant.RoutingIdentifier = uuid.NewString()
		if err := s.participants.CreateIdentity(ctx, participant.RoutingIdentifier, identifier); err != nil {
			return nil, fmt.Errorf("identity mint: %w", err)
		}
	}
	participant.Identifier = identifier

	s.mu.Lock()
	s.online[identifier] = participant
	s.routePairing[participant.RoutingIdentifier] = identifier
	if participant.Email != "" {
		s.contactPairing[participant.Email] = identifier
	}
	s.mu.Unlock()

	// Claim the route on the fabric so peer nodes forward here. A failed
	// claim does not unwind local state; the next announce refreshes it.
	if err := s.fabric.RegisterParticipant(ctx, participant.RoutingIdentifier); err != nil {
		s.logger.Warn("ROUTE_CLAIM_FAILED",
			"participant", identifier,
			"routing_identifier", participant.RoutingIdentifier,
			"err", err,
		)
	}

	s.logger.Info("PARTICIPANT_RESOLVED",
		"participant", identifier,
		"routing_identifier", participant.RoutingIdentifier,
		"nickname", participant.Nickname,
	)
	return participant, nil
}

// SaveDeviceInformation records one device of the participant's
// collective.
func (s *ParticipantService) SaveDeviceInformation(ctx context.Context, participantIdentifier string, device model.DeviceDetails) error {
	if err := s.participants.AddDevice(ctx, participantIdentifier, device); err != nil {
		return fmt.Errorf("save device: %w", err)
	}
	return nil
}

// EnrollDevice services the registry's post-identification hook. It runs
// off the connection path, so failures are logged rather than unwinding
// an already-accepted identity.
func (s *ParticipantService) EnrollDevice(ctx context.Context, participantIdentifier string, device model.DeviceDetails) {
	if _, err := s.Fetch(ctx, participantIdentifier); err != nil {
		s.logger.Error("ENROLLMENT_FAILED",
			"participant", participantIdentifier,
			"err", err,
		)
		return
	}

	if err := s.SaveDeviceInformation(ctx, participantIdentifier, device); err != nil {
		s.logger.Error("DEVICE_PERSIST_FAILED",
			"participant", participantIdentifier,
			"device", device.Name,
			"err", err,
		)
	}
}

// RoutingIdentifiers snapshots every routing identity this node has
// resolved. Used to refresh fabric claims when a new node joins.
func (s *ParticipantService) RoutingIdentifiers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	routes := make([]string, 0, len(s.routePairing))
	for route := range s.routePairing {
		routes = append(routes, route)
	}
	return routes
}

// localParticipant resolves a routing identity to the cached profile of
// a locally known participant.
func (s *ParticipantService) localParticipant(routingIdentifier string) (*model.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identifier, ok := s.routePairing[routingIdentifier]
	if !ok {
		return nil, false
	}
	participant, ok := s.online[identifier]
	return participant, ok
}

// dispatch issues one command while holding the dispatch sequence, so
// concurrent relays toward the same collective enqueue in issue order.
func (s *ParticipantService) dispatch(ctx context.Context, cmd any) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	return s.dispatcher.Handle(ctx, cmd)
}
