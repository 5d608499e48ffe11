package service

import (
	"context"
	"fmt"

	"github.com/chatfabric/chat-node/internal/chatproto"
)

// ResolveContacts matches a device's address book against participants
// this node knows. Only email handles resolve; the response carries the
// matched participants' routing identities, never their account
// identifiers.
func (s *ParticipantService) ResolveContacts(ctx context.Context, payload []byte) ([]byte, error) {
	batch := new(chatproto.BatchContactMatchRequest)
	if err := batch.Unmarshal(payload); err != nil {
		return nil, fmt.Errorf("contact batch decode: %w", err)
	}

	response := new(chatproto.BatchContactMatchResponse)

	s.mu.RLock()
	for _, request := range batch.Requests {
		if request == nil || request.Type != chatproto.ContactTypeEmail {
			continue
		}
		identifier, ok := s.contactPairing[request.Value]
		if !ok {
			continue
		}
		participant, ok := s.online[identifier]
		if !ok {
			continue
		}
		response.Contacts = append(response.Contacts, &chatproto.Contact{
			RoutingIdentifier: participant.RoutingIdentifier,
			Nickname:          participant.Nickname,
			PhotoURL:          participant.PhotoURL,
		})
	}
	s.mu.RUnlock()

	s.logger.Debug("CONTACTS_RESOLVED",
		"requested", len(batch.Requests),
		"matched", len(response.Contacts),
	)
	return response.Marshal(), nil
}
