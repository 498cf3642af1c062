// Package natsconn is the shared NATS connection factory. Both services use
// it: the catalog store for outbox publishing, the portal for cache
// invalidation and analytics.
package natsconn

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/example/fiction-portal/internal/platform/config"
)

// Options configures the connection. Zero values fall back to env vars
// (NATS_URL, NATS_MAX_RECONNECTS, NATS_RECONNECT_WAIT) or built-in defaults.
type Options struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Connect dials NATS without retrying the initial connection, so callers can
// apply their own fail-fast policy (fatal in production, degrade in dev).
func Connect(opts Options) (*nats.Conn, error) {
	opts = withDefaults(opts)

	nc, err := nats.Connect(opts.URL,
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}

func withDefaults(opts Options) Options {
	if opts.URL == "" {
		opts.URL = config.EnvStr("NATS_URL", "nats://nats:4222")
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = config.EnvInt("NATS_MAX_RECONNECTS", 5)
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = config.EnvDuration("NATS_RECONNECT_WAIT", 2*time.Second)
	}
	return opts
}
