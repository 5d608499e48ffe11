/*
Package registry owns every live TCP connection on the node, from the
moment the transport accepts it until it disconnects.

Key architectural concepts:
  - Device collectives: every authenticated participant is represented by
    an isolated 'Collective' (actor) that encapsulates all concurrent
    connections (devices) for that identity.
  - Decoupling & backpressure: per-participant mailboxes decouple command
    dispatch from socket writes, so a slow device cannot block global
    fan-out throughput.
  - Identity gate: a connection sits in the pending table and receives
    nothing but identity traffic until its bearer token verifies.
  - Concurrency management: a coarse RWMutex guards the two tables;
    fine-grained locking inside individual collectives keeps delivery
    contention per participant.
*/
package registry

import (
	"sync"
	"time"

	"github.com/chatfabric/chat-node/internal/wire"
	"github.com/google/uuid"
)

// dispatch is one fan-out job queued on a collective's mailbox. A set
// exclude skips the connection that produced the payload.
type dispatch struct {
	kind    wire.ResponseType
	payload []byte
	exclude uuid.UUID
}

// Collective is the actor owning all live connections of one participant.
type Collective struct {
	// [IDENTITY]
	// The participant identifier every member connection authenticated as.
	participantID string

	// [MAILBOX]
	// Buffered channel that decouples command handlers from socket
	// delivery. It acts as a shock absorber: a saturated participant
	// sheds load here instead of stalling the command bus.
	mailbox chan dispatch

	// [MEMBERS]
	// All live connections (devices) of the participant, keyed by their
	// connection id.
	conns map[uuid.UUID]Connector

	// RWMutex: delivery reads outnumber attach/detach writes.
	mu sync.RWMutex

	// [LIFECYCLE_CONTROL]
	// Closing doneCh terminates the delivery goroutine.
	doneCh   chan struct{}
	stopOnce sync.Once

	sendTimeout time.Duration
}

func newCollective(participantID string, mailboxSize int, sendTimeout time.Duration) *Collective {
	c := &Collective{
		participantID: participantID,
		mailbox:       make(chan dispatch, mailboxSize),
		conns:         make(map[uuid.UUID]Connector),
		doneCh:        make(chan struct{}),
		sendTimeout:   sendTimeout,
	}
	go c.loop()
	return c
}

// Push enqueues a fan-out job. Returns false when the mailbox is
// saturated or the collective is already stopped.
func (c *Collective) Push(d dispatch) bool {
	select {
	case <-c.doneCh:
		return false
	case c.mailbox <- d:
		return true
	default:
		return false
	}
}

func (c *Collective) Attach(conn Connector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[conn.UniqueID()] = conn
}

// Detach removes a connection. It reports whether the connection was a
// member and whether the collective is now empty and should be reclaimed.
func (c *Collective) Detach(connID uuid.UUID) (removed, empty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.conns[connID]; !ok {
		return false, len(c.conns) == 0
	}
	delete(c.conns, connID)
	return true, len(c.conns) == 0
}

func (c *Collective) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}

// Members returns the connection ids currently attached.
func (c *Collective) Members() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(c.conns))
	for id := range c.conns {
		ids = append(ids, id)
	}
	return ids
}

// Connections snapshots the attached connections.
func (c *Collective) Connections() []Connector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conns := make([]Connector, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	return conns
}

// loop serializes fan-out: one dispatch finishes before the next begins,
// which is what keeps per-participant delivery ordered.
func (c *Collective) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case d := <-c.mailbox:
			c.deliver(d)
		}
	}
}

func (c *Collective) deliver(d dispatch) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for id, conn := range c.conns {
		if d.exclude != uuid.Nil && id == d.exclude {
			continue
		}
		conn.Send(d.kind, d.payload, c.sendTimeout)
	}
}

func (c *Collective) Stop() {
	c.stopOnce.Do(func() {
		close(c.doneCh)
	})
}
