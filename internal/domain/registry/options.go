package registry

import "time"

type config struct {
	mailboxSize int
	sendTimeout time.Duration
}

func defaultConfig() config {
	return config{
		mailboxSize: 2048,
		sendTimeout: 500 * time.Millisecond,
	}
}

// Option defines a functional configuration type for the Registry.
type Option func(*Registry)

// WithMailboxSize sets the [BACKPRESSURE] threshold.
// It defines the buffer capacity for each collective's actor mailbox.
func WithMailboxSize(size int) Option {
	return func(r *Registry) {
		r.cfg.mailboxSize = size
	}
}

// WithSendTimeout bounds how long an enqueue toward a single connection
// may block before the write is dropped.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.cfg.sendTimeout = d
	}
}
