package transport

import (
	"net"

	"github.com/VolantMQ/rabbitlite/metrics"
)

// Conn is wrapper to net.Conn
// implemented to encapsulate bytes statistic
type Conn interface {
	net.Conn
}

type conn struct {
	net.Conn
	stat *metrics.Metrics
}

var _ Conn = (*conn)(nil)

// Handler serves accepted connection
// OnConnection blocks until connection is finished
type Handler interface {
	OnConnection(Conn) error
}

// HandlerFunc adapts function to Handler
type HandlerFunc func(Conn) error

// OnConnection ...
func (f HandlerFunc) OnConnection(c Conn) error {
	return f(c)
}

func newConn(cn net.Conn, stat *metrics.Metrics) *conn {
	return &conn{
		Conn: cn,
		stat: stat,
	}
}

// Read ...
func (c *conn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)

	c.stat.BytesReceived(n)

	return n, err
}

// Write ...
func (c *conn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)

	c.stat.BytesSent(n)

	return n, err
}
