package storage

import "go.uber.org/fx"

var Module = fx.Module("storage",
	fx.Provide(
		fx.Annotate(
			NewMySQLParticipantRepository,
			fx.As(new(ParticipantRepository)),
		),
		fx.Annotate(
			NewMySQLMessageRepository,
			fx.As(new(MessageRepository)),
		),
	),
)
