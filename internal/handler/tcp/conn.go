package tcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chatfabric/chat-node/internal/chatproto"
	"github.com/chatfabric/chat-node/internal/domain/model"
	"github.com/chatfabric/chat-node/internal/domain/registry"
	"github.com/chatfabric/chat-node/internal/service"
	"github.com/chatfabric/chat-node/internal/wire"
	"github.com/google/uuid"
)

// Write path tuning.
const (
	writeDeadline  = 30 * time.Second
	outboundBuffer = 256
	readBufferSize = 4096

	// replyTimeout bounds enqueues for replies the connection produces
	// itself (contact batches, refusals).
	replyTimeout = 500 * time.Millisecond
)

// Protocol states. Closed is terminal.
const (
	statePending int32 = iota
	stateAuthenticated
	stateClosed
)

// Client-visible refusal for group operations. Group fan-out is not
// served by this node.
const (
	codeGroupUnsupported   = "GROUP-UNSUPPORTED"
	detailGroupUnsupported = "Group conversations are not available on this node"
)

// Interface guard
var _ registry.Connector = (*Conn)(nil)

// outFrame is one queued write.
type outFrame struct {
	kind    uint16
	payload []byte
}

// Conn binds one client socket to the registry and the participant
// service. A reader goroutine decodes request frames and dispatches by
// protocol state; a writer goroutine owns the socket's write side and
// drains queued frames before the socket closes.
type Conn struct {
	id        uuid.UUID
	sock      net.Conn
	logger    *slog.Logger
	registrar registry.Registrar
	relayer   service.Relayer

	// [STATE_WORD] Pending until the registry resolves an identity.
	state atomic.Int32

	mu          sync.RWMutex
	participant string
	device      model.DeviceDetails

	outbound chan outFrame
	stop     chan struct{}
	stopOnce sync.Once
}

func newConn(sock net.Conn, logger *slog.Logger, registrar registry.Registrar, relayer service.Relayer) *Conn {
	return &Conn{
		id:        uuid.New(),
		sock:      sock,
		logger:    logger,
		registrar: registrar,
		relayer:   relayer,
		outbound:  make(chan outFrame, outboundBuffer),
		stop:      make(chan struct{}),
	}
}

func (c *Conn) UniqueID() uuid.UUID { return c.id }

func (c *Conn) ParticipantIdentifier() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.participant
}

// ResolveParticipant binds the verified identity to the connection and
// opens the authenticated request surface.
func (c *Conn) ResolveParticipant(identifier string, device model.DeviceDetails) {
	c.mu.Lock()
	c.participant = identifier
	c.device = device
	c.mu.Unlock()

	// A concurrent close wins over the promotion.
	c.state.CompareAndSwap(statePending, stateAuthenticated)
}

func (c *Conn) Device() model.DeviceDetails {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.device
}

func (c *Conn) RemoteAddr() string {
	if addr := c.sock.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Send enqueues one framed write, waiting at most timeout for mailbox
// room. It reports whether the frame was accepted.
func (c *Conn) Send(kind wire.ResponseType, payload []byte, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.stop:
		return false
	case c.outbound <- outFrame{kind: uint16(kind), payload: payload}:
		return true
	case <-timer.C:
		return false
	}
}

// Close ends the session. Frames already queued are still flushed; the
// writer closes the socket once the queue drains.
func (c *Conn) Close() {
	c.stopOnce.Do(func() {
		c.state.Store(stateClosed)
		close(c.stop)
	})
}

// writeLoop owns the socket's write side.
func (c *Conn) writeLoop() {
	defer c.sock.Close()

	scratch := make([]byte, 0, 512)
	for {
		select {
		case f := <-c.outbound:
			if !c.write(scratch, f) {
				return
			}
		case <-c.stop:
			// [FINAL_FLUSH] Drain whatever was queued before the close,
			// then release the socket.
			for {
				select {
				case f := <-c.outbound:
					if !c.write(scratch, f) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Conn) write(scratch []byte, f outFrame) bool {
	c.sock.SetWriteDeadline(time.Now().Add(writeDeadline))

	frame := wire.AppendFrame(scratch[:0], f.kind, f.payload)
	if _, err := c.sock.Write(frame); err != nil {
		if c.state.Load() != stateClosed {
			c.logger.Debug("CONNECTION_WRITE_FAILED", "conn_id", c.id, "err", err)
		}
		c.Close()
		return false
	}
	return true
}

// readLoop decodes request frames until the session ends, then removes
// the connection from the registry exactly once more than the protocol
// already did, which the registry treats as a no-op. Close runs first:
// an in-band DISCONNECT already queued its farewell, and every other
// ending is silent, so the late Remove must find a dead send queue.
func (c *Conn) readLoop(ctx context.Context) {
	defer func() {
		c.Close()
		c.registrar.Remove(c)
	}()

	decoder := wire.NewDecoder()
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.sock.Read(buf)
		if n > 0 {
			frames, ferr := decoder.Feed(buf[:n])
			for _, frame := range frames {
				if !c.handleFrame(ctx, frame) {
					return
				}
			}
			if ferr != nil {
				// Framing violations end the session with no response.
				c.logger.Debug("FRAMING_VIOLATION", "conn_id", c.id, "remote", c.RemoteAddr(), "err", ferr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && c.state.Load() != stateClosed {
				c.logger.Debug("CONNECTION_READ_ENDED", "conn_id", c.id, "err", err)
			}
			return
		}
	}
}

func (c *Conn) handleFrame(ctx context.Context, frame wire.Frame) bool {
	kind := wire.RequestType(frame.Kind)
	switch c.state.Load() {
	case statePending:
		return c.servePending(ctx, kind, frame.Payload)
	case stateAuthenticated:
		return c.serveAuthenticated(ctx, kind, frame.Payload)
	default:
		return false
	}
}

// servePending gates everything except identification.
func (c *Conn) servePending(ctx context.Context, kind wire.RequestType, payload []byte) bool {
	switch kind {
	case wire.RequestTypeIdentity:
		if err := c.registrar.Register(ctx, c, payload); err != nil {
			c.logger.Debug("IDENTIFICATION_UNDECODABLE", "conn_id", c.id, "err", err)
			return false
		}
		return true

	case wire.RequestTypeDisconnect:
		c.registrar.Remove(c)
		return false

	default:
		c.logger.Debug("FRAME_DROPPED_PENDING", "conn_id", c.id, "request", kind.String())
		return true
	}
}

func (c *Conn) serveAuthenticated(ctx context.Context, kind wire.RequestType, payload []byte) bool {
	switch kind {
	case wire.RequestTypeDirectMessage:
		if err := c.relayer.RelayDirectMessage(ctx, c.ParticipantIdentifier(), payload); err != nil {
			c.logger.Debug("DIRECT_MESSAGE_UNDECODABLE", "conn_id", c.id, "err", err)
			return false
		}
		return true

	case wire.RequestTypeMatchContacts:
		response, err := c.relayer.ResolveContacts(ctx, payload)
		if err != nil {
			c.logger.Debug("CONTACT_BATCH_UNDECODABLE", "conn_id", c.id, "err", err)
			return false
		}
		c.Send(wire.ResponseTypeContactBatch, response, replyTimeout)
		return true

	case wire.RequestTypeJoinGroup,
		wire.RequestTypeLeaveGroup,
		wire.RequestTypeFetchGroups,
		wire.RequestTypeSearchForGroup:
		// The rejection kind is the protocol's only Failure-bearing
		// response, so refusals ride on it.
		refusal := chatproto.NewFailure(codeGroupUnsupported, detailGroupUnsupported)
		c.Send(wire.ResponseTypeIdentityRejection, refusal.Marshal(), replyTimeout)
		return true

	case wire.RequestTypeDisconnect:
		c.registrar.Remove(c)
		return false

	case wire.RequestTypeIdentity:
		// Already identified; repeat identifications are dropped.
		c.logger.Debug("DUPLICATE_IDENTIFICATION_DROPPED", "conn_id", c.id, "participant", c.ParticipantIdentifier())
		return true

	default:
		c.logger.Debug("UNKNOWN_REQUEST_DROPPED", "conn_id", c.id, "request", uint16(kind))
		return true
	}
}
