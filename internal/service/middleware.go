package service

import (
	"context"
	"log/slog"
	"time"
)

// RelayerMiddleware implements [DECORATOR_PATTERN] to add observability
// to the relay path without touching business logic.
type RelayerMiddleware struct {
	Next   Relayer
	Logger *slog.Logger
}

// NewRelayerMiddleware creates a new logging decorator for the Relayer.
func NewRelayerMiddleware(next Relayer, logger *slog.Logger) Relayer {
	return &RelayerMiddleware{
		Next:   next,
		Logger: logger,
	}
}

// RelayDirectMessage wraps the relay with execution timing and outcome
// logging.
func (m *RelayerMiddleware) RelayDirectMessage(ctx context.Context, senderIdentifier string, payload []byte) error {
	start := time.Now()

	err := m.Next.RelayDirectMessage(ctx, senderIdentifier, payload)

	duration := time.Since(start)
	if err != nil {
		m.Logger.Warn("RELAY_REFUSED",
			"sender", senderIdentifier,
			"err", err,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		m.Logger.Debug("RELAY_COMPLETED",
			"sender", senderIdentifier,
			"payload_bytes", len(payload),
			"duration_ms", duration.Milliseconds(),
		)
	}

	return err
}

// ResolveContacts wraps contact matching with outcome logging.
func (m *RelayerMiddleware) ResolveContacts(ctx context.Context, payload []byte) ([]byte, error) {
	start := time.Now()

	response, err := m.Next.ResolveContacts(ctx, payload)
	if err != nil {
		m.Logger.Warn("CONTACT_MATCH_REFUSED",
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return response, err
}
