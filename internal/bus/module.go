package bus

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module("bus",
	fx.Provide(
		fx.Annotate(
			NewNATSClient,
			fx.As(new(Client)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, c Client, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := c.StartUp(ctx); err != nil {
					return err
				}
				// Advisory only; the link may still be dialing when the
				// node comes up, so a failed announce is not fatal.
				if err := c.AnnounceNodeJoined(ctx); err != nil {
					logger.Warn("NODE_ANNOUNCE_SKIPPED", "err", err)
				}
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return c.Shutdown(ctx)
			},
		})
	}),
)
