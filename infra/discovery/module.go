package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/chatfabric/chat-node/config"
)

var Module = fx.Module("discovery",
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) error {
		if !config.ConsulEnabled() {
			logger.Info("DISCOVERY_DISABLED")
			return nil
		}

		client, err := config.NewConsulClient()
		if err != nil {
			return fmt.Errorf("discovery: consul client: %w", err)
		}
		registration := NewRegistration(client, cfg, logger)

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return registration.Register()
			},
			OnStop: func(context.Context) error {
				return registration.Deregister()
			},
		})
		return nil
	}),
)
