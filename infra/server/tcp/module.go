package tcp

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/chatfabric/chat-node/config"
	tcphandler "github.com/chatfabric/chat-node/internal/handler/tcp"
)

var Module = fx.Module("server.tcp",
	fx.Provide(func(cfg *config.Config, handler *tcphandler.Handler, logger *slog.Logger) *Server {
		return New(fmt.Sprintf(":%d", cfg.Port), handler, logger)
	}),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  s.Stop,
		})
	}),
)
