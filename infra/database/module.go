package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"go.uber.org/fx"

	"github.com/chatfabric/chat-node/config"
)

var Module = fx.Module("database",
	fx.Provide(func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*sqlx.DB, error) {
		db, err := Open(cfg.Database.URI)
		if err != nil {
			return nil, err
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := db.PingContext(ctx); err != nil {
					return fmt.Errorf("database: ping: %w", err)
				}
				logger.Info("DATABASE_CONNECTED")
				return nil
			},
			OnStop: func(context.Context) error {
				return db.Close()
			},
		})
		return db, nil
	}),
)
