package service

import (
	"context"
	"testing"

	"github.com/chatfabric/chat-node/internal/chatproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveContactsMatchesKnownEmails(t *testing.T) {
	h := newHarness(t)
	aliceRouting := h.enroll(t, "alice", "Alice", "alice@example.com")
	h.enroll(t, "bob", "Bob", "bob@example.com")

	batch := &chatproto.BatchContactMatchRequest{
		Requests: []*chatproto.ContactRequest{
			{Type: chatproto.ContactTypeEmail, Value: "alice@example.com"},
			{Type: chatproto.ContactTypePhone, Value: "+15550100"},
			{Type: chatproto.ContactTypeEmail, Value: "stranger@example.com"},
		},
	}

	encoded, err := h.svc.ResolveContacts(context.Background(), batch.Marshal())
	require.NoError(t, err)

	response := new(chatproto.BatchContactMatchResponse)
	require.NoError(t, response.Unmarshal(encoded))
	require.Len(t, response.Contacts, 1, "phone and unknown email must not match")

	contact := response.Contacts[0]
	assert.Equal(t, aliceRouting, contact.RoutingIdentifier)
	assert.Equal(t, "Alice", contact.Nickname)
	assert.Equal(t, "https://cdn.example.com/alice.png", contact.PhotoURL)
}

func TestResolveContactsEmptyBatch(t *testing.T) {
	h := newHarness(t)

	batch := new(chatproto.BatchContactMatchRequest)
	encoded, err := h.svc.ResolveContacts(context.Background(), batch.Marshal())
	require.NoError(t, err)

	response := new(chatproto.BatchContactMatchResponse)
	require.NoError(t, response.Unmarshal(encoded))
	assert.Empty(t, response.Contacts)
}

func TestResolveContactsRefusesGarbage(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ResolveContacts(context.Background(), []byte{0xff})
	require.Error(t, err)
}
