package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chatfabric/chat-node/internal/chatproto"
	"github.com/chatfabric/chat-node/internal/command"
	"github.com/chatfabric/chat-node/internal/domain/model"
	"github.com/chatfabric/chat-node/internal/token"
	"github.com/chatfabric/chat-node/internal/wire"
	"github.com/google/uuid"
)

// Client-visible registry notices. Device builds match on these strings.
const (
	codeIdentityRejected = "IDENTITY-REJECTED"

	msgIdentityAccepted    = "IDENTITY-ACCEPTED"
	detailIdentityAccepted = "Your identity has been successfully validated"

	msgConnectionEnded    = "CONNECTION ENDED"
	detailConnectionEnded = "We are initiating a disconnection sequence for your connection"
)

var (
	// ErrNoCollective reports a MessageDispatchCommand for a participant
	// with no local collective. The participant service must route
	// cross-node before emitting the command, so this is a hard error.
	ErrNoCollective = errors.New("registry: no collective for participant")

	// ErrMailboxSaturated reports a collective too backed up to accept
	// another fan-out job.
	ErrMailboxSaturated = errors.New("registry: collective mailbox saturated")
)

// Connector is the registry-facing contract of one TCP connection.
type Connector interface {
	UniqueID() uuid.UUID
	ParticipantIdentifier() string
	// ResolveParticipant binds the verified identity and device to the
	// connection.
	ResolveParticipant(identifier string, device model.DeviceDetails)
	Device() model.DeviceDetails
	RemoteAddr() string
	// Send enqueues one framed write. It blocks at most timeout and
	// reports whether the payload was accepted.
	Send(kind wire.ResponseType, payload []byte, timeout time.Duration) bool
	// Close tears the connection down after flushing queued writes.
	Close()
}

// TokenVerifier validates the bearer token inside an Identification.
type TokenVerifier interface {
	Verify(encrypted string) (*token.Claims, error)
}

// Enroller persists the participant side of an accepted identity: device
// details, routing identity allocation, cache population. Runs off the
// connection path.
type Enroller interface {
	EnrollDevice(ctx context.Context, participantIdentifier string, device model.DeviceDetails)
}

// Registrar is the gateway the transport layer talks to.
type Registrar interface {
	OnConnect(conn Connector)
	Register(ctx context.Context, conn Connector, payload []byte) error
	Remove(conn Connector)
	IsOnline(participantIdentifier string) bool
	Stats() model.RegistryStats
}

// Interface guard
var _ Registrar = (*Registry)(nil)

// Registry tracks every connection on the node through two tables:
// pending (awaiting identity) and collectives (authenticated, grouped by
// participant).
type Registry struct {
	verifier TokenVerifier
	enroller Enroller
	logger   *slog.Logger
	cfg      config

	mu          sync.RWMutex
	pending     map[uuid.UUID]Connector
	collectives map[string]*Collective
}

func NewRegistry(verifier TokenVerifier, enroller Enroller, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		verifier:    verifier,
		enroller:    enroller,
		logger:      logger,
		cfg:         defaultConfig(),
		pending:     make(map[uuid.UUID]Connector),
		collectives: make(map[string]*Collective),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterHandlers binds the registry's fan-out to the command bus.
func (r *Registry) RegisterHandlers(bus *command.Bus) error {
	if err := bus.Register(model.MessageDispatchCommand{}, r.handleMessageDispatch); err != nil {
		return err
	}
	return bus.Register(model.DeviceBroadcastCommand{}, r.handleDeviceBroadcast)
}

// OnConnect places a fresh connection in the pending table and asks the
// device to identify itself.
func (r *Registry) OnConnect(conn Connector) {
	r.mu.Lock()
	r.pending[conn.UniqueID()] = conn
	r.mu.Unlock()

	conn.Send(wire.ResponseTypeRequestIdentity, nil, r.cfg.sendTimeout)

	r.logger.Debug("CONNECTION_PENDING",
		"conn_id", conn.UniqueID(),
		"remote", conn.RemoteAddr(),
	)
}

// Register authenticates a pending connection from an IDENTITY payload.
// A verification failure is soft: the device is told why and dropped. A
// payload that does not even decode is a protocol violation and comes
// back as an error so the transport closes without a response.
func (r *Registry) Register(ctx context.Context, conn Connector, payload []byte) error {
	idn := new(chatproto.Identification)
	if err := idn.Unmarshal(payload); err != nil {
		return fmt.Errorf("identification decode: %w", err)
	}

	claims, err := r.verifier.Verify(idn.Token)
	if err != nil {
		r.reject(conn, err)
		return nil
	}
	if claims.ParticipantIdentifier() == "" {
		r.reject(conn, &token.VerificationError{Kind: token.KindMalformed, Reason: token.DetailInvalidClaim})
		return nil
	}

	participantID := claims.ParticipantIdentifier()
	device := model.DeviceFromWire(idn.Device)
	conn.ResolveParticipant(participantID, device)

	r.mu.Lock()
	delete(r.pending, conn.UniqueID())
	col, ok := r.collectives[participantID]
	if !ok {
		// [LAZY_INIT] First device of this participant on the node.
		col = newCollective(participantID, r.cfg.mailboxSize, r.cfg.sendTimeout)
		r.collectives[participantID] = col
	}
	col.Attach(conn)
	r.mu.Unlock()

	accepted := chatproto.NewInfo(msgIdentityAccepted, detailIdentityAccepted)
	conn.Send(wire.ResponseTypeIdentityAccepted, accepted.Marshal(), r.cfg.sendTimeout)

	r.logger.Info("IDENTITY_ACCEPTED",
		"participant", participantID,
		"conn_id", conn.UniqueID(),
		"device", device.Name,
		"collective_size", col.Size(),
	)

	// Account resolution and device persistence run off the connection
	// path so a slow lookup cannot stall the read loop.
	go r.enroller.EnrollDevice(context.WithoutCancel(ctx), participantID, device)

	return nil
}

func (r *Registry) reject(conn Connector, cause error) {
	detail := token.DetailInvalidClaim
	var verr *token.VerificationError
	if errors.As(cause, &verr) {
		detail = verr.Reason
	}

	failure := chatproto.NewFailure(codeIdentityRejected, detail)
	conn.Send(wire.ResponseTypeIdentityRejection, failure.Marshal(), r.cfg.sendTimeout)

	r.mu.Lock()
	delete(r.pending, conn.UniqueID())
	r.mu.Unlock()

	r.logger.Warn("IDENTITY_REJECTED",
		"conn_id", conn.UniqueID(),
		"remote", conn.RemoteAddr(),
		"reason", detail,
	)

	// The rejection is queued; Close flushes it before tearing down.
	conn.Close()
}

// Remove detaches a connection from whichever table holds it. Removing a
// connection twice is a no-op.
func (r *Registry) Remove(conn Connector) {
	connID := conn.UniqueID()

	r.mu.Lock()
	_, wasPending := r.pending[connID]
	delete(r.pending, connID)

	found := wasPending
	if pid := conn.ParticipantIdentifier(); pid != "" {
		if col, ok := r.collectives[pid]; ok {
			removed, empty := col.Detach(connID)
			found = found || removed
			if removed && empty {
				col.Stop()
				delete(r.collectives, pid)
			}
		}
	}
	r.mu.Unlock()

	if !found {
		return
	}

	ended := chatproto.NewInfo(msgConnectionEnded, detailConnectionEnded)
	conn.Send(wire.ResponseTypeDisconnectionAccepted, ended.Marshal(), r.cfg.sendTimeout)

	r.logger.Debug("CONNECTION_REMOVED",
		"conn_id", connID,
		"participant", conn.ParticipantIdentifier(),
		"was_pending", wasPending,
	)
}

func (r *Registry) IsOnline(participantIdentifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.collectives[participantIdentifier]
	return ok
}

func (r *Registry) Stats() model.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, col := range r.collectives {
		total += col.Size()
	}
	return model.RegistryStats{
		PendingConnections: len(r.pending),
		Collectives:        len(r.collectives),
		TotalConnections:   total + len(r.pending),
	}
}

// Shutdown stops every collective actor and closes every connection.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	conns := make([]Connector, 0, len(r.pending))
	for _, conn := range r.pending {
		conns = append(conns, conn)
	}
	for _, col := range r.collectives {
		conns = append(conns, col.Connections()...)
		col.Stop()
	}
	r.pending = make(map[uuid.UUID]Connector)
	r.collectives = make(map[string]*Collective)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}

	r.logger.Info("REGISTRY_SHUTDOWN", "connections_closed", len(conns))
}

func (r *Registry) handleMessageDispatch(ctx context.Context, cmd any) error {
	c := cmd.(model.MessageDispatchCommand)

	r.mu.RLock()
	col, ok := r.collectives[c.ParticipantIdentifier]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCollective, c.ParticipantIdentifier)
	}
	if !col.Push(dispatch{kind: c.ResponseType, payload: c.Payload}) {
		return fmt.Errorf("%w: %s", ErrMailboxSaturated, c.ParticipantIdentifier)
	}
	return nil
}

func (r *Registry) handleDeviceBroadcast(ctx context.Context, cmd any) error {
	c := cmd.(model.DeviceBroadcastCommand)

	r.mu.RLock()
	col, ok := r.collectives[c.ParticipantIdentifier]
	r.mu.RUnlock()

	if !ok {
		// The source disconnected between issuing and handling. Nothing
		// left to mirror to.
		r.logger.Debug("BROADCAST_COLLECTIVE_GONE", "participant", c.ParticipantIdentifier)
		return nil
	}
	if !col.Push(dispatch{kind: c.ResponseType, payload: c.Payload, exclude: c.SourceUniqueIdentifier}) {
		return fmt.Errorf("%w: %s", ErrMailboxSaturated, c.ParticipantIdentifier)
	}
	return nil
}
