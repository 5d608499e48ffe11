package chatproto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestIdentificationRoundTrip(t *testing.T) {
	in := &Identification{
		Token: "eyJhbGciOiJSU0EtT0FFUCJ9..stub",
		Device: &Device{
			Name:            "pixel-9",
			OperatingSystem: "android",
			Version:         "16",
			IPAddress:       "10.1.2.3",
		},
	}

	var out Identification
	require.NoError(t, out.Unmarshal(in.Marshal()))

	assert.Equal(t, in.Token, out.Token)
	require.NotNil(t, out.Device)
	assert.Equal(t, *in.Device, *out.Device)
}

func TestDirectMessageRoundTrip(t *testing.T) {
	sent := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	in := &DirectMessage{
		TargetIdentifier: "7d2a41f0-98f5-4f3a-bd54-2c831a3207c1",
		Payload:          []byte("ciphertext-or-not, the node does not care"),
		SentAt:           NewTimestamp(sent),
	}

	var out DirectMessage
	require.NoError(t, out.Unmarshal(in.Marshal()))

	assert.Equal(t, in.TargetIdentifier, out.TargetIdentifier)
	assert.Equal(t, in.Payload, out.Payload)
	assert.Equal(t, sent, out.SentAt.Time())
}

func TestDeliveryCarriesMarkerAndState(t *testing.T) {
	in := &Delivery{
		Message:          "Failed to deliver the message :(",
		State:            DeliveryFailed,
		Marker:           "0f0e6a9c-9d44-4e3d-8146-1a2b3c4d5e6f",
		TargetIdentifier: "R3",
	}

	var out Delivery
	require.NoError(t, out.Unmarshal(in.Marshal()))

	assert.Equal(t, DeliveryFailed, out.State)
	assert.Equal(t, in.Marker, out.Marker)
	assert.Equal(t, in.TargetIdentifier, out.TargetIdentifier)
	assert.Equal(t, in.Message, out.Message)
}

func TestDeliveryZeroStateStaysSent(t *testing.T) {
	// SENT is the zero enum value and therefore absent from the wire.
	in := &Delivery{State: DeliverySent, Marker: "m"}

	var out Delivery
	require.NoError(t, out.Unmarshal(in.Marshal()))
	assert.Equal(t, DeliverySent, out.State)
}

func TestNoticeRoundTrip(t *testing.T) {
	info := NewInfo("IDENTITY-ACCEPTED", "Your identity has been successfully validated")
	var gotInfo Info
	require.NoError(t, gotInfo.Unmarshal(info.Marshal()))
	assert.Equal(t, info.Message, gotInfo.Message)
	assert.Equal(t, info.Details, gotInfo.Details)
	assert.False(t, gotInfo.OccurredAt.Time().IsZero())

	fail := NewFailure("IDENTITY-REJECTED", "This token is already expired")
	var gotFail Failure
	require.NoError(t, gotFail.Unmarshal(fail.Marshal()))
	assert.Equal(t, "IDENTITY-REJECTED", gotFail.Error)
	assert.Equal(t, "This token is already expired", gotFail.Details)
}

func TestContactBatchRoundTrip(t *testing.T) {
	in := &BatchContactMatchRequest{
		Requests: []*ContactRequest{
			{Type: ContactTypeEmail, Value: "ada@example.test"},
			{Type: ContactTypePhone, Value: "+254700000001"},
			{Type: ContactTypeEmail, Value: "grace@example.test"},
		},
	}

	var out BatchContactMatchRequest
	require.NoError(t, out.Unmarshal(in.Marshal()))

	require.Len(t, out.Requests, 3)
	assert.Equal(t, ContactTypePhone, out.Requests[1].Type)
	assert.Equal(t, "grace@example.test", out.Requests[2].Value)

	resp := &BatchContactMatchResponse{
		Contacts: []*Contact{
			{RoutingIdentifier: "r-1", Nickname: "ada", PhotoURL: "https://cdn.example.test/a.png"},
		},
	}
	var gotResp BatchContactMatchResponse
	require.NoError(t, gotResp.Unmarshal(resp.Marshal()))
	require.Len(t, gotResp.Contacts, 1)
	assert.Equal(t, *resp.Contacts[0], *gotResp.Contacts[0])
}

func TestPassOverRoundTrip(t *testing.T) {
	in := &ParticipantPassOver{
		SenderIdentifier: "sender-routing-id",
		TargetIdentifier: "target-routing-id",
		OriginatingNode:  "node-a",
		Payload:          []byte{1, 2, 3},
		Marker:           "marker-uuid",
		Nickname:         "FOX",
	}

	var out ParticipantPassOver
	require.NoError(t, out.Unmarshal(in.Marshal()))
	assert.Equal(t, *in, out)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	// A newer peer may append fields this node has never heard of.
	b := (&Details{Identifier: "p-77", Nickname: "lin"}).Marshal()
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "from-the-future")
	b = protowire.AppendTag(b, 10, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)

	var out Details
	require.NoError(t, out.Unmarshal(b))
	assert.Equal(t, "p-77", out.Identifier)
	assert.Equal(t, "lin", out.Nickname)
}

func TestTruncatedDataFailsCleanly(t *testing.T) {
	full := (&DirectMessage{TargetIdentifier: "r", Payload: []byte("xyz")}).Marshal()

	var out DirectMessage
	err := out.Unmarshal(full[:len(full)-2])
	require.Error(t, err)
}

func TestTimestampNilSafety(t *testing.T) {
	var ts *Timestamp
	assert.True(t, ts.Time().IsZero())
}
