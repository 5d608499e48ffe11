package service

import (
	"github.com/chatfabric/chat-node/internal/domain/registry"
	"go.uber.org/fx"
)

// The Relayer decoration lives in the application root, not here: fx
// scopes module decorations to the declaring module, and the transport
// consuming Relayer is a sibling.
var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			NewParticipantService,
			fx.As(new(Relayer)),
			fx.As(new(registry.Enroller)),
		),
	),
)
