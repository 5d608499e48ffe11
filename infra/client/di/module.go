// Package clientdi wires the account directory the participant service
// resolves identities through. With account_service_url set the node
// talks HTTP to the account service; otherwise lookups ride the bus
// request/reply subject the fabric already carries.
package clientdi

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/chatfabric/chat-node/config"
	"github.com/chatfabric/chat-node/infra/client/account"
	"github.com/chatfabric/chat-node/internal/bus"
	"github.com/chatfabric/chat-node/internal/service"
)

var Module = fx.Module(
	"clients",

	// [CONSTRUCTOR] Provides the directory behind the participant service
	fx.Provide(func(cfg *config.Config, logger *slog.Logger, fabric bus.Client) (service.AccountDirectory, error) {
		if cfg.AccountServiceURL == "" {
			logger.Info("ACCOUNT_DIRECTORY_SELECTED", "mode", "bus")
			return service.NewBusDirectory(fabric), nil
		}

		client, err := account.New(cfg.AccountServiceURL, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("ACCOUNT_DIRECTORY_SELECTED", "mode", "http", "base_url", cfg.AccountServiceURL)
		return client, nil
	}),

	// [LIFECYCLE] Ensures the HTTP connection pool is closed gracefully on app shutdown
	fx.Invoke(func(lc fx.Lifecycle, directory service.AccountDirectory) {
		client, ok := directory.(*account.Client)
		if !ok {
			return
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
	}),
)
