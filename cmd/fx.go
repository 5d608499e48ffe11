package cmd

import (
	"log/slog"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/chatfabric/chat-node/config"
	clientdi "github.com/chatfabric/chat-node/infra/client/di"
	"github.com/chatfabric/chat-node/infra/database"
	"github.com/chatfabric/chat-node/infra/discovery"
	httpsrv "github.com/chatfabric/chat-node/infra/server/http"
	tcpsrv "github.com/chatfabric/chat-node/infra/server/tcp"
	"github.com/chatfabric/chat-node/internal/bus"
	"github.com/chatfabric/chat-node/internal/command"
	"github.com/chatfabric/chat-node/internal/domain/registry"
	tcphandler "github.com/chatfabric/chat-node/internal/handler/tcp"
	"github.com/chatfabric/chat-node/internal/service"
	"github.com/chatfabric/chat-node/internal/storage"
	"github.com/chatfabric/chat-node/internal/token"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideTokenVerifier,
			ProvideCommandBus,
			func(b *command.Bus) command.Dispatcher { return b },
			ProvideBusConfig,
			ProvideServiceConfig,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),

		// [DECORATION_LAYER] Intercept Relayer to add cross-cutting
		// concerns for every transport that consumes it.
		fx.Decorate(func(orig service.Relayer, logger *slog.Logger) service.Relayer {
			return service.NewRelayerMiddleware(orig, logger)
		}),

		database.Module,
		storage.Module,
		bus.Module,
		clientdi.Module,
		service.Module,
		registry.Module,
		tcphandler.Module,
		tcpsrv.Module,
		httpsrv.Module,
		discovery.Module,

		fx.Invoke(WatchSettings),
	)
}

// ProvideLogger builds the process logger: JSON on stdout, enriched with
// the static service identity every line carries.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	host, _ := os.Hostname()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		"service", cfg.Build.Name,
		"version", cfg.Build.Version,
		"environment", cfg.Build.Environment,
		"host", host,
		"node", cfg.Node,
	)
	slog.SetDefault(logger)
	return logger
}

// ProvideTokenVerifier loads the process-wide RSA key once; the verifier
// is immutable afterwards.
func ProvideTokenVerifier(cfg *config.Config) (registry.TokenVerifier, error) {
	return token.NewVerifier(cfg.PrivateKeyPath)
}

// ProvideCommandBus builds the in-process dispatcher with the logging
// middleware wrapping every dispatch.
func ProvideCommandBus(logger *slog.Logger) *command.Bus {
	return command.NewBus(command.Logging(logger))
}

// ProvideBusConfig maps the settings block onto the fabric client.
func ProvideBusConfig(cfg *config.Config) bus.Config {
	return bus.Config{
		Servers:              cfg.NATS.Servers,
		Verbose:              cfg.NATS.Verbose,
		AllowReconnect:       cfg.NATS.AllowReconnect,
		ConnectTimeout:       time.Duration(cfg.NATS.ConnectTimeout) * time.Second,
		ReconnectTimeWait:    time.Duration(cfg.NATS.ReconnectTimeWait) * time.Second,
		MaxReconnectAttempts: cfg.NATS.MaxReconnectAttempts,
		Node:                 cfg.Node,
	}
}

func ProvideServiceConfig(cfg *config.Config) service.Config {
	return service.Config{Node: cfg.Node}
}

// WatchSettings re-reads the local settings file on change. Listen ports
// and the node name stay fixed for the process lifetime; the reload is
// logged either way so operators can see their edit landed.
func WatchSettings(cfg *config.Config, logger *slog.Logger) {
	cfg.Watch(logger, nil)
}
