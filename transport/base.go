package transport

import (
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/VolantMQ/rabbitlite/metrics"
)

// Config of listener
type Config struct {
	// Host to bind to, empty binds all interfaces
	Host string

	// Port to listen on, "0" picks free one
	Port string

	// CertFile and KeyFile enable TLS when both set
	CertFile string
	KeyFile  string

	Handler Handler

	Metrics *metrics.Metrics
}

// Provider listener of one protocol
type Provider interface {
	Protocol() string
	Serve() error
	Close() error
	Port() string
	Addr() net.Addr
	Ready() error
	Alive() error
}

type baseConfig struct {
	config Config

	quit chan struct{}
	log  *zap.SugaredLogger

	onConnection sync.WaitGroup
	onceStop     sync.Once
	protocol     string
}

func (c *baseConfig) Protocol() string {
	return c.protocol
}

func (c *baseConfig) tls() bool {
	return len(c.config.CertFile) != 0 && len(c.config.KeyFile) != 0
}

// handleConnection pass accepted connection to handler, connection is closed if handler rejects it
func (c *baseConfig) handleConnection(cn Conn) {
	c.config.Metrics.ConnectionOpened()

	if err := c.config.Handler.OnConnection(cn); err != nil {
		c.log.Warnw("connection rejected", "remote", cn.RemoteAddr().String(), "error", err)
		cn.Close() // nolint: errcheck, gas
	}

	c.config.Metrics.ConnectionClosed()
}
