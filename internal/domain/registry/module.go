package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatfabric/chat-node/internal/command"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Registry using Functional Options
		func(verifier TokenVerifier, enroller Enroller, logger *slog.Logger) *Registry {
			return NewRegistry(verifier, enroller, logger,
				WithMailboxSize(2048),
				WithSendTimeout(500*time.Millisecond),
			)
		},
		fx.Annotate(
			func(r *Registry) Registrar { return r },
			fx.As(new(Registrar)),
		),
	),
	fx.Invoke(func(bus *command.Bus, r *Registry) error {
		// Fan-out commands terminate here.
		return r.RegisterHandlers(bus)
	}),
	fx.Invoke(func(lc fx.Lifecycle, r *Registry) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				r.Shutdown() // [GRACEFUL_SHUTDOWN] Stop all Actor goroutines
				return nil
			},
		})
	}),
)
