package connection

import (
	"errors"
	"time"

	"github.com/VolantMQ/rabbitlite/metrics"
	"github.com/VolantMQ/rabbitlite/transport"
)

// Option configures connection
type Option func(*impl) error

// SetOptions ...
func (s *impl) SetOptions(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return err
		}
	}

	return nil
}

// NetConn transport connection frames are exchanged over
func NetConn(val transport.Conn) Option {
	return func(t *impl) error {
		if t.conn != nil {
			return errors.New("already set")
		}

		t.conn = val
		return nil
	}
}

// VHosts resolver of virtual host requested by connection.open
func VHosts(val Resolver) Option {
	return func(t *impl) error {
		t.vhosts = val
		return nil
	}
}

// Metric broker counters
func Metric(val *metrics.Metrics) Option {
	return func(t *impl) error {
		t.metric = val
		return nil
	}
}

// MaxFrameSize limit of incoming frame payload
func MaxFrameSize(val int) Option {
	return func(t *impl) error {
		t.maxFrameSize = val
		return nil
	}
}

// OpenTimeout period connection.open must arrive within
func OpenTimeout(val time.Duration) Option {
	return func(t *impl) error {
		t.openTimeout = val
		return nil
	}
}

// IdleTimeout closes connection when no frame arrives within period, 0 disables
func IdleTimeout(val time.Duration) Option {
	return func(t *impl) error {
		t.idleTimeout = val
		return nil
	}
}

// OnClose invoked once connection is closed
func OnClose(val func(id string)) Option {
	return func(t *impl) error {
		t.onClose = val
		return nil
	}
}
