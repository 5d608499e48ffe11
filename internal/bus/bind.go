package bus

import (
	"context"
	"log/slog"
	"runtime/debug"
)

// message constrains Bind to pointer types carrying our wire codecs.
type message[T any] interface {
	*T
	Unmarshal(data []byte) error
}

// Bind adapts a typed listener to the subscription contract. It supplies
// the decoder for the subject and shields the bus callback path from
// listener panics so one poisoned event cannot take the consumer down.
func Bind[T any, PT message[T]](logger *slog.Logger, owner string, fn func(ctx context.Context, ev PT)) (DecoderFunc, HandlerFunc) {
	decode := func(data []byte) (Event, error) {
		ev := PT(new(T))
		if err := ev.Unmarshal(data); err != nil {
			return nil, err
		}
		return ev, nil
	}

	handle := func(ctx context.Context, ev Event) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("LISTENER_PANIC_RECOVERED",
					"owner", owner,
					"err", r,
					"stack", string(debug.Stack()),
				)
			}
		}()

		typed, ok := ev.(PT)
		if !ok {
			logger.Warn("LISTENER_TYPE_MISMATCH", "owner", owner)
			return
		}
		fn(ctx, typed)
	}

	return decode, handle
}
