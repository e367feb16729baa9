package connection

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/VolantMQ/rabbitlite/configuration"
	"github.com/VolantMQ/rabbitlite/metrics"
	"github.com/VolantMQ/rabbitlite/transport"
)

// ErrShutdown manager does not accept connections anymore
var ErrShutdown = errors.New("connection manager: shutdown")

// ManagerConfig ...
type ManagerConfig struct {
	VHosts       Resolver
	Metrics      *metrics.Metrics
	MaxFrameSize int
	OpenTimeout  time.Duration
	IdleTimeout  time.Duration
}

// Manager registry of connections and their channels
type Manager struct {
	config ManagerConfig
	log    *zap.SugaredLogger

	lock     sync.Mutex
	conns    map[string]Connection
	shutdown bool
}

var _ transport.Handler = (*Manager)(nil)

// NewManager allocate connection manager
func NewManager(config ManagerConfig) *Manager {
	return &Manager{
		config: config,
		log:    configuration.GetLogger().Named("connections"),
		conns:  make(map[string]Connection),
	}
}

// OnConnection serves accepted transport connection until it is closed
func (m *Manager) OnConnection(cn transport.Conn) error {
	opts := []Option{
		NetConn(cn),
		VHosts(m.config.VHosts),
		Metric(m.config.Metrics),
		MaxFrameSize(m.config.MaxFrameSize),
		IdleTimeout(m.config.IdleTimeout),
		OnClose(m.remove),
	}

	if m.config.OpenTimeout > 0 {
		opts = append(opts, OpenTimeout(m.config.OpenTimeout))
	}

	c, err := New(opts...)
	if err != nil {
		return err
	}

	m.lock.Lock()
	if m.shutdown {
		m.lock.Unlock()
		return ErrShutdown
	}
	m.conns[c.ID()] = c
	m.lock.Unlock()

	if err = c.Run(); err != nil {
		m.log.Debugw("connection finished", "id", c.ID(), "error", err)
	}

	return nil
}

func (m *Manager) remove(id string) {
	m.lock.Lock()
	delete(m.conns, id)
	m.lock.Unlock()
}

// Connection by id
func (m *Manager) Connection(id string) (Connection, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	c, ok := m.conns[id]
	return c, ok
}

// Channel by connection id and channel id
func (m *Manager) Channel(connID string, id uint16) (*Channel, bool) {
	c, ok := m.Connection(connID)
	if !ok {
		return nil, false
	}

	return c.Channel(id)
}

// List ids of active connections
func (m *Manager) List() []string {
	m.lock.Lock()
	defer m.lock.Unlock()

	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Count active connections
func (m *Manager) Count() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.conns)
}

// Shutdown closes every connection, new connections are rejected
func (m *Manager) Shutdown() {
	m.lock.Lock()
	m.shutdown = true
	conns := make([]Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.lock.Unlock()

	for _, c := range conns {
		c.Close(ErrShutdown)
	}

	m.log.Infow("connections closed", "count", len(conns))
}
