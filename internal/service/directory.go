package service

import (
	"context"
	"fmt"

	"github.com/chatfabric/chat-node/internal/bus"
	"github.com/chatfabric/chat-node/internal/domain/model"
)

// Interface guard
var _ AccountDirectory = (*BusDirectory)(nil)

// BusDirectory resolves participant profiles over the fabric's
// request/reply path. Used when no account service HTTP endpoint is
// configured.
type BusDirectory struct {
	fabric bus.Client
}

func NewBusDirectory(fabric bus.Client) *BusDirectory {
	return &BusDirectory{fabric: fabric}
}

func (d *BusDirectory) FetchDetails(ctx context.Context, identifier string) (*model.Participant, error) {
	details, err := d.fabric.FetchDetails(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("details over bus: %w", err)
	}
	return &model.Participant{
		Identifier: identifier,
		Nickname:   details.Nickname,
		Email:      details.Email,
		PhotoURL:   details.PhotoURL,
	}, nil
}
