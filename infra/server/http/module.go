package http

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"go.uber.org/fx"

	"github.com/chatfabric/chat-node/config"
	"github.com/chatfabric/chat-node/internal/bus"
	"github.com/chatfabric/chat-node/internal/domain/registry"
)

var Module = fx.Module("server.http",
	fx.Provide(
		func(cfg *config.Config, fabric bus.Client, db *sqlx.DB, registrar registry.Registrar, logger *slog.Logger) *Handler {
			return NewHandler(cfg.Build, fabric, db, registrar, logger)
		},
		func(cfg *config.Config, handler *Handler, logger *slog.Logger) *Server {
			return NewServer(fmt.Sprintf(":%d", cfg.Health.Port), handler, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  s.Stop,
		})
	}),
)
