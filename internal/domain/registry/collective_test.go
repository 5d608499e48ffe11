package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chatfabric/chat-node/internal/domain/model"
	"github.com/chatfabric/chat-node/internal/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentFrame struct {
	kind    wire.ResponseType
	payload []byte
}

// fakeConn records everything the registry pushes at it.
type fakeConn struct {
	id          uuid.UUID
	mu          sync.Mutex
	sends       []sentFrame
	closed      bool
	participant string
	device      model.DeviceDetails

	// blockSend, when set, makes Send wait until the channel is closed.
	blockSend chan struct{}
	// sendStarted is signalled once per Send entry when set.
	sendStarted chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (f *fakeConn) UniqueID() uuid.UUID { return f.id }

func (f *fakeConn) ParticipantIdentifier() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participant
}

func (f *fakeConn) ResolveParticipant(identifier string, device model.DeviceDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participant = identifier
	f.device = device
}

func (f *fakeConn) Device() model.DeviceDetails {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.device
}

func (f *fakeConn) RemoteAddr() string { return "203.0.113.9:51423" }

func (f *fakeConn) Send(kind wire.ResponseType, payload []byte, timeout time.Duration) bool {
	if f.sendStarted != nil {
		f.sendStarted <- struct{}{}
	}
	if f.blockSend != nil {
		<-f.blockSend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentFrame{kind: kind, payload: payload})
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) sent() []sentFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentFrame, len(f.sends))
	copy(out, f.sends)
	return out
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}

func TestCollectiveDeliversToAllMembers(t *testing.T) {
	col := newCollective("alice", 16, time.Second)
	defer col.Stop()

	first := newFakeConn()
	second := newFakeConn()
	col.Attach(first)
	col.Attach(second)

	ok := col.Push(dispatch{kind: wire.ResponseTypeReceiveDirectMessage, payload: []byte("hi")})
	require.True(t, ok)

	waitUntil(t, func() bool {
		return len(first.sent()) == 1 && len(second.sent()) == 1
	}, "both devices receive the dispatch")

	frame := first.sent()[0]
	assert.Equal(t, wire.ResponseTypeReceiveDirectMessage, frame.kind)
	assert.Equal(t, []byte("hi"), frame.payload)
}

func TestCollectiveExcludesSourceConnection(t *testing.T) {
	col := newCollective("alice", 16, time.Second)
	defer col.Stop()

	source := newFakeConn()
	mirror := newFakeConn()
	col.Attach(source)
	col.Attach(mirror)

	require.True(t, col.Push(dispatch{
		kind:    wire.ResponseTypeReceiveDirectMessage,
		payload: []byte("mirrored"),
		exclude: source.UniqueID(),
	}))

	waitUntil(t, func() bool { return len(mirror.sent()) == 1 }, "mirror device receives")

	// Give the loop a beat; the source must stay silent.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, source.sent())
}

func TestCollectivePreservesDispatchOrder(t *testing.T) {
	col := newCollective("alice", 64, time.Second)
	defer col.Stop()

	conn := newFakeConn()
	col.Attach(conn)

	for i := 0; i < 20; i++ {
		require.True(t, col.Push(dispatch{
			kind:    wire.ResponseTypeReceiveDirectMessage,
			payload: []byte(fmt.Sprintf("m-%02d", i)),
		}))
	}

	waitUntil(t, func() bool { return len(conn.sent()) == 20 }, "all dispatches delivered")

	for i, frame := range conn.sent() {
		assert.Equal(t, fmt.Sprintf("m-%02d", i), string(frame.payload))
	}
}

func TestCollectivePushAfterStop(t *testing.T) {
	col := newCollective("alice", 16, time.Second)
	col.Stop()

	assert.False(t, col.Push(dispatch{kind: wire.ResponseTypeReceiveDirectMessage}))
}

func TestCollectiveShedsLoadWhenSaturated(t *testing.T) {
	col := newCollective("alice", 1, time.Second)
	defer col.Stop()

	conn := newFakeConn()
	conn.blockSend = make(chan struct{})
	conn.sendStarted = make(chan struct{}, 4)
	col.Attach(conn)

	// First dispatch occupies the delivery loop.
	require.True(t, col.Push(dispatch{payload: []byte("busy")}))
	<-conn.sendStarted

	// Second fills the single mailbox slot, third must shed.
	require.True(t, col.Push(dispatch{payload: []byte("queued")}))
	assert.False(t, col.Push(dispatch{payload: []byte("dropped")}))

	close(conn.blockSend)
	waitUntil(t, func() bool { return len(conn.sent()) == 2 }, "accepted dispatches drain")
}

func TestCollectiveDetachReportsMembership(t *testing.T) {
	col := newCollective("alice", 16, time.Second)
	defer col.Stop()

	first := newFakeConn()
	second := newFakeConn()
	col.Attach(first)
	col.Attach(second)
	require.Equal(t, 2, col.Size())

	removed, empty := col.Detach(first.UniqueID())
	assert.True(t, removed)
	assert.False(t, empty)

	removed, empty = col.Detach(first.UniqueID())
	assert.False(t, removed, "second detach of the same id")
	assert.False(t, empty)

	removed, empty = col.Detach(second.UniqueID())
	assert.True(t, removed)
	assert.True(t, empty)
}
