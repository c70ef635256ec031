package mq

import "log/slog"

// ConnOption configures optional, non-required behavior of a Connection (or,
// via a Manager's pooled Connection, a Manager) at construction time. Mirrors
// amenzhinsky/iothub's transport/mqtt functional-option pattern rather than a
// package-wide logger singleton.
type ConnOption func(*connConfig)

type connConfig struct {
	logger *slog.Logger
}

func newConnConfig(opts []ConnOption) connConfig {
	cfg := connConfig{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithLogger redirects a Connection's (and its owned Queues') log lines to l
// instead of slog.Default().
func WithLogger(l *slog.Logger) ConnOption {
	return func(c *connConfig) { c.logger = l }
}
