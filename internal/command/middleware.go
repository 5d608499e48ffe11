package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Logging emits one structured event per dispatch with latency and
// outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, cmd any) error {
			start := time.Now()
			err := next(ctx, cmd)

			if err != nil {
				logger.Error("COMMAND_FAILED",
					"command", fmt.Sprintf("%T", cmd),
					"err", err,
					"duration_ms", time.Since(start).Milliseconds(),
				)
				return err
			}

			logger.Debug("COMMAND_HANDLED",
				"command", fmt.Sprintf("%T", cmd),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}
