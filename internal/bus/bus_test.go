package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/chatfabric/chat-node/internal/chatproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPassOverSubjectShape(t *testing.T) {
	assert.Equal(t, "v1/node/node-b/participants/pass-over", PassOverSubject("node-b"))
}

func TestFakeInjectDrivesTypedHandler(t *testing.T) {
	fake := NewFake("node-a")
	require.NoError(t, fake.StartUp(context.Background()))

	var got *chatproto.ParticipantPassOver
	decode, handle := Bind(discardLogger(), "participant-service", func(ctx context.Context, ev *chatproto.ParticipantPassOver) {
		got = ev
	})
	fake.RegisterSubscriptionHandler(PassOverSubject("node-a"), decode, handle, "participant-service")

	event := &chatproto.ParticipantPassOver{
		SenderIdentifier: "R1",
		TargetIdentifier: "R2",
		OriginatingNode:  "node-b",
		Payload:          []byte("hi"),
		Marker:           "m-1",
	}
	require.NoError(t, fake.Inject(PassOverSubject("node-a"), event.Marshal()))

	require.NotNil(t, got)
	assert.Equal(t, "R2", got.TargetIdentifier)
	assert.Equal(t, "node-b", got.OriginatingNode)
	assert.Equal(t, "m-1", got.Marker)
}

func TestFakeInjectUnknownSubject(t *testing.T) {
	fake := NewFake("node-a")
	require.NoError(t, fake.StartUp(context.Background()))

	err := fake.Inject("v1/nowhere", []byte{})
	require.Error(t, err)
}

func TestFakeInjectSurfacesDecodeFailure(t *testing.T) {
	fake := NewFake("node-a")
	require.NoError(t, fake.StartUp(context.Background()))

	decode, handle := Bind(discardLogger(), "t", func(ctx context.Context, ev *chatproto.ParticipantPassOver) {})
	fake.RegisterSubscriptionHandler("v1/x", decode, handle, "t")

	// 0xFF is an invalid leading tag byte.
	err := fake.Inject("v1/x", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	require.Error(t, err)
}

func TestBindRecoversListenerPanic(t *testing.T) {
	fake := NewFake("node-a")
	require.NoError(t, fake.StartUp(context.Background()))

	decode, handle := Bind(discardLogger(), "t", func(ctx context.Context, ev *chatproto.NodeJoined) {
		panic("listener exploded")
	})
	fake.RegisterSubscriptionHandler(SubjectNodeJoined, decode, handle, "t")

	require.NotPanics(t, func() {
		_ = fake.Inject(SubjectNodeJoined, (&chatproto.NodeJoined{Identifier: "node-z"}).Marshal())
	})
}

func TestFakeRoutingTable(t *testing.T) {
	fake := NewFake("node-a")
	require.NoError(t, fake.StartUp(context.Background()))

	_, ok, err := fake.FetchLastKnownNode(context.Background(), "R9")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fake.RegisterParticipant(context.Background(), "R9"))
	node, ok, err := fake.FetchLastKnownNode(context.Background(), "R9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "node-a", node)
}

func TestFakeDisconnectedOperations(t *testing.T) {
	fake := NewFake("node-a")
	require.NoError(t, fake.StartUp(context.Background()))
	fake.SetConnected(false)

	_, _, err := fake.FetchLastKnownNode(context.Background(), "R1")
	assert.ErrorIs(t, err, ErrDisconnected)

	err = fake.PassOverDirectMessage(context.Background(), "node-b", &chatproto.ParticipantPassOver{})
	assert.ErrorIs(t, err, ErrDisconnected)

	_, err = fake.FetchDetails(context.Background(), "P1")
	assert.ErrorIs(t, err, ErrDisconnected)

	assert.False(t, fake.Connected())
}

func TestFakeRecordsPassOvers(t *testing.T) {
	fake := NewFake("node-a")
	require.NoError(t, fake.StartUp(context.Background()))

	ev := &chatproto.ParticipantPassOver{TargetIdentifier: "R2", Marker: "m"}
	require.NoError(t, fake.PassOverDirectMessage(context.Background(), "node-b", ev))

	records := fake.PassOvers()
	require.Len(t, records, 1)
	assert.Equal(t, "node-b", records[0].Node)
	assert.Equal(t, "R2", records[0].Event.TargetIdentifier)
}

func TestFakeDetailsResponder(t *testing.T) {
	fake := NewFake("node-a")
	require.NoError(t, fake.StartUp(context.Background()))

	_, err := fake.FetchDetails(context.Background(), "P1")
	require.Error(t, err)

	fake.SeedDetails(&chatproto.Details{Identifier: "P1", Nickname: "ada", Email: "ada@example.test"})
	d, err := fake.FetchDetails(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "ada", d.Nickname)
}
