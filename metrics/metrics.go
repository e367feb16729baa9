// Package metrics collects broker counters and reports them periodically.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type metricEntry struct {
	sent uint64
	recv uint64
}

func (e *metricEntry) snapshot() Entry {
	return Entry{
		Sent:     atomic.LoadUint64(&e.sent),
		Received: atomic.LoadUint64(&e.recv),
	}
}

type stat struct {
	curr uint64
	max  uint64
}

func (s *stat) add() {
	newVal := atomic.AddUint64(&s.curr, 1)
	for {
		old := atomic.LoadUint64(&s.max)
		if old >= newVal || atomic.CompareAndSwapUint64(&s.max, old, newVal) {
			return
		}
	}
}

func (s *stat) remove() {
	atomic.AddUint64(&s.curr, ^uint64(0))
}

func (s *stat) snapshot() Stat {
	return Stat{
		Current: atomic.LoadUint64(&s.curr),
		Max:     atomic.LoadUint64(&s.max),
	}
}

// Entry sent/received pair
type Entry struct {
	Sent     uint64
	Received uint64
}

// Stat current/max pair
type Stat struct {
	Current uint64
	Max     uint64
}

// Snapshot of all counters
type Snapshot struct {
	Bytes       Entry
	Frames      Entry
	Methods     map[string]Entry
	Connections Stat
	Channels    Stat
	Published   uint64
	Unroutable  uint64
	Routed      uint64
	Delivered   uint64
	Redelivered uint64
	Acked       uint64
}

// Metrics broker counters, safe for concurrent use
// Nil *Metrics is valid and records nothing
type Metrics struct {
	bytes       metricEntry
	frames      metricEntry
	connections stat
	channels    stat
	published   uint64
	unroutable  uint64
	routed      uint64
	delivered   uint64
	redelivered uint64
	acked       uint64

	lock    sync.RWMutex
	methods map[string]*metricEntry
}

// New allocate metrics
func New() *Metrics {
	return &Metrics{
		methods: make(map[string]*metricEntry),
	}
}

func (m *Metrics) method(name string) *metricEntry {
	m.lock.RLock()
	e, ok := m.methods[name]
	m.lock.RUnlock()

	if ok {
		return e
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if e, ok = m.methods[name]; !ok {
		e = &metricEntry{}
		m.methods[name] = e
	}

	return e
}

// BytesSent ...
func (m *Metrics) BytesSent(n int) {
	if m != nil && n > 0 {
		atomic.AddUint64(&m.bytes.sent, uint64(n))
	}
}

// BytesReceived ...
func (m *Metrics) BytesReceived(n int) {
	if m != nil && n > 0 {
		atomic.AddUint64(&m.bytes.recv, uint64(n))
	}
}

// Sent add sent frame of method
func (m *Metrics) Sent(method string) {
	if m == nil {
		return
	}

	atomic.AddUint64(&m.frames.sent, 1)
	atomic.AddUint64(&m.method(method).sent, 1)
}

// Received add received frame of method
func (m *Metrics) Received(method string) {
	if m == nil {
		return
	}

	atomic.AddUint64(&m.frames.recv, 1)
	atomic.AddUint64(&m.method(method).recv, 1)
}

// ConnectionOpened ...
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.add()
	}
}

// ConnectionClosed ...
func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.remove()
	}
}

// ChannelOpened ...
func (m *Metrics) ChannelOpened() {
	if m != nil {
		m.channels.add()
	}
}

// ChannelClosed ...
func (m *Metrics) ChannelClosed() {
	if m != nil {
		m.channels.remove()
	}
}

// Published message accepted by exchange and routed to queues
func (m *Metrics) Published(queues int) {
	if m == nil {
		return
	}

	atomic.AddUint64(&m.published, 1)

	if queues == 0 {
		atomic.AddUint64(&m.unroutable, 1)
	} else {
		atomic.AddUint64(&m.routed, uint64(queues))
	}
}

// Delivered message written to consumer
func (m *Metrics) Delivered(redelivered bool) {
	if m == nil {
		return
	}

	atomic.AddUint64(&m.delivered, 1)
	if redelivered {
		atomic.AddUint64(&m.redelivered, 1)
	}
}

// Acked ...
func (m *Metrics) Acked() {
	if m != nil {
		atomic.AddUint64(&m.acked, 1)
	}
}

// Snapshot current values
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Methods: make(map[string]Entry),
	}

	if m == nil {
		return s
	}

	s.Bytes = m.bytes.snapshot()
	s.Frames = m.frames.snapshot()
	s.Connections = m.connections.snapshot()
	s.Channels = m.channels.snapshot()
	s.Published = atomic.LoadUint64(&m.published)
	s.Unroutable = atomic.LoadUint64(&m.unroutable)
	s.Routed = atomic.LoadUint64(&m.routed)
	s.Delivered = atomic.LoadUint64(&m.delivered)
	s.Redelivered = atomic.LoadUint64(&m.redelivered)
	s.Acked = atomic.LoadUint64(&m.acked)

	m.lock.RLock()
	for name, e := range m.methods {
		s.Methods[name] = e.snapshot()
	}
	m.lock.RUnlock()

	return s
}

// Reporter logs snapshot on periodic basis
type Reporter struct {
	m      *Metrics
	log    *zap.SugaredLogger
	period time.Duration
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewReporter starts reporting metrics every period
func NewReporter(m *Metrics, period time.Duration, log *zap.SugaredLogger) *Reporter {
	r := &Reporter{
		m:      m,
		log:    log,
		period: period,
		quit:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *Reporter) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Report()
		case <-r.quit:
			return
		}
	}
}

// Report logs current snapshot
func (r *Reporter) Report() {
	s := r.m.Snapshot()

	r.log.Infow("metrics",
		zap.Uint64("bytes_sent", s.Bytes.Sent),
		zap.Uint64("bytes_received", s.Bytes.Received),
		zap.Uint64("frames_sent", s.Frames.Sent),
		zap.Uint64("frames_received", s.Frames.Received),
		zap.Uint64("connections", s.Connections.Current),
		zap.Uint64("connections_max", s.Connections.Max),
		zap.Uint64("channels", s.Channels.Current),
		zap.Uint64("published", s.Published),
		zap.Uint64("unroutable", s.Unroutable),
		zap.Uint64("routed", s.Routed),
		zap.Uint64("delivered", s.Delivered),
		zap.Uint64("redelivered", s.Redelivered),
		zap.Uint64("acked", s.Acked),
	)
}

// Stop reporter
func (r *Reporter) Stop() {
	select {
	case <-r.quit:
	default:
		close(r.quit)
	}

	r.wg.Wait()
}
