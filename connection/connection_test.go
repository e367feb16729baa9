package connection

import (
	"encoding/binary"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/rabbitlite/frame"
	"github.com/VolantMQ/rabbitlite/metrics"
	"github.com/VolantMQ/rabbitlite/persistence"
	"github.com/VolantMQ/rabbitlite/types"
	"github.com/VolantMQ/rabbitlite/vhost"
)

type testBroker struct {
	host    *vhost.VirtualHost
	metrics *metrics.Metrics
	manager *Manager
}

func newBroker(t *testing.T) *testBroker {
	pool := types.NewPool(4, 16, 1)
	m := metrics.New()

	host, err := vhost.New(vhost.Config{
		Name:     "/",
		Backend:  persistence.BackendMem,
		Pool:     pool,
		Prefetch: 1,
		Metrics:  m,
	})
	require.NoError(t, err)

	b := &testBroker{
		host:    host,
		metrics: m,
	}

	b.manager = NewManager(ManagerConfig{
		VHosts: func(name string) (*vhost.VirtualHost, bool) {
			if name == "/" {
				return host, true
			}
			return nil, false
		},
		Metrics:      b.metrics,
		MaxFrameSize: 1024,
	})

	t.Cleanup(func() {
		b.manager.Shutdown()
		host.Shutdown()
		pool.Close() // nolint: errcheck
	})

	return b
}

type client struct {
	t      *testing.T
	cn     net.Conn
	resp   chan *frame.Frame
	events chan *frame.Frame
	reqID  uint64
	closed chan struct{}
}

func (b *testBroker) dial(t *testing.T) *client {
	srv, cn := net.Pipe()

	c := &client{
		t:      t,
		cn:     cn,
		resp:   make(chan *frame.Frame, 64),
		events: make(chan *frame.Frame, 64),
		closed: make(chan struct{}),
	}

	go b.manager.OnConnection(srv) // nolint: errcheck

	go func() {
		defer close(c.closed)

		r := frame.NewReader(cn, 0)
		for {
			f, _, err := r.Read()
			if err != nil {
				return
			}

			if f.Method == frame.Response {
				c.resp <- f
			} else {
				c.events <- f
			}
		}
	}()

	t.Cleanup(func() {
		cn.Close() // nolint: errcheck
	})

	return c
}

func (c *client) send(f *frame.Frame) {
	_, err := frame.Write(c.cn, f)
	require.NoError(c.t, err)
}

func (c *client) call(f *frame.Frame) *frame.Frame {
	c.reqID++
	f.RequestID = c.reqID
	c.send(f)

	select {
	case r := <-c.resp:
		require.Equal(c.t, c.reqID, r.RequestID, "response to %s", f.Method)
		return r
	case <-time.After(2 * time.Second):
		require.FailNow(c.t, "response timeout", f.Method)
	}

	return nil
}

func (c *client) ok(f *frame.Frame) *frame.Frame {
	r := c.call(f)
	require.True(c.t, r.OK, "%s: %s", f.Method, r.Reason)
	return r
}

func (c *client) fail(f *frame.Frame, code types.ReasonCode) {
	r := c.call(f)
	require.False(c.t, r.OK, f.Method)
	require.Equal(c.t, uint16(code), r.Code, "%s: %s", f.Method, r.Reason)
}

func (c *client) event() *frame.Frame {
	select {
	case f := <-c.events:
		return f
	case <-time.After(2 * time.Second):
		require.FailNow(c.t, "event timeout")
	}

	return nil
}

func (c *client) noEvent() {
	select {
	case f := <-c.events:
		require.FailNow(c.t, "unexpected event", "%s %s", f.Method, f.MessageID)
	case <-time.After(50 * time.Millisecond):
	}
}

func (c *client) waitClosed() {
	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		require.FailNow(c.t, "connection not closed")
	}
}

// open negotiates vhost and opens channel 1
func (c *client) open() {
	c.ok(&frame.Frame{Method: frame.ConnectionOpen, VHost: "/"})
	c.ok(&frame.Frame{Method: frame.ChannelOpen, Channel: 1})
}

func (c *client) topology(exchangeType string) {
	c.ok(&frame.Frame{Method: frame.ExchangeDeclare, Channel: 1, Exchange: "ex", ExchangeType: exchangeType})
	c.ok(&frame.Frame{Method: frame.QueueDeclare, Channel: 1, Queue: "q"})
	c.ok(&frame.Frame{Method: frame.QueueBind, Channel: 1, Exchange: "ex", Queue: "q", BindingKey: "k"})
}

func TestConnectionOpen(t *testing.T) {
	b := newBroker(t)
	c := b.dial(t)

	c.fail(&frame.Frame{Method: frame.QueueDeclare, Channel: 1, Queue: "q"}, types.CodeChannelError)
	c.fail(&frame.Frame{Method: frame.ChannelOpen, Channel: 1}, types.CodeChannelError)
	c.fail(&frame.Frame{Method: frame.ConnectionOpen, VHost: "missing"}, types.CodeNotAllowed)

	r := c.ok(&frame.Frame{Method: frame.ConnectionOpen})
	require.Equal(t, "/", r.VHost)

	c.fail(&frame.Frame{Method: frame.ConnectionOpen}, types.CodeCommandInvalid)

	require.Eventually(t, func() bool { return b.manager.Count() == 1 }, time.Second, 10*time.Millisecond)

	c.ok(&frame.Frame{Method: frame.ConnectionClose})
	c.waitClosed()

	require.Eventually(t, func() bool { return b.manager.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestChannelStates(t *testing.T) {
	b := newBroker(t)
	c := b.dial(t)
	c.ok(&frame.Frame{Method: frame.ConnectionOpen})

	c.fail(&frame.Frame{Method: frame.ChannelOpen, Channel: 0}, types.CodeCommandInvalid)
	c.ok(&frame.Frame{Method: frame.ChannelOpen, Channel: 1})
	c.fail(&frame.Frame{Method: frame.ChannelOpen, Channel: 1}, types.CodeChannelError)
	c.ok(&frame.Frame{Method: frame.ChannelOpen, Channel: 2})

	require.Equal(t, uint64(2), b.metrics.Snapshot().Channels.Current)

	c.fail(&frame.Frame{Method: frame.QueueDeclare, Channel: 3, Queue: "q"}, types.CodeChannelError)

	c.ok(&frame.Frame{Method: frame.ChannelClose, Channel: 2})
	c.fail(&frame.Frame{Method: frame.QueueDeclare, Channel: 2, Queue: "q"}, types.CodeChannelError)
	c.fail(&frame.Frame{Method: frame.ChannelClose, Channel: 2}, types.CodeChannelError)

	// other channel is unaffected
	c.ok(&frame.Frame{Method: frame.QueueDeclare, Channel: 1, Queue: "q"})

	c.fail(&frame.Frame{Method: "basic.get", Channel: 1}, types.CodeCommandInvalid)

	require.Equal(t, uint64(1), b.metrics.Snapshot().Channels.Current)

	// channel ids are reusable after close
	c.ok(&frame.Frame{Method: frame.ChannelOpen, Channel: 2})
}

func TestDeclareErrors(t *testing.T) {
	b := newBroker(t)
	c := b.dial(t)
	c.open()

	c.ok(&frame.Frame{Method: frame.ExchangeDeclare, Channel: 1, Exchange: "ex", ExchangeType: "fanout"})
	c.fail(&frame.Frame{Method: frame.ExchangeDeclare, Channel: 1, Exchange: "ex", ExchangeType: "direct"}, types.CodePreconditionFailed)
	c.fail(&frame.Frame{Method: frame.ExchangeDeclare, Channel: 1, Exchange: "bad", ExchangeType: "headers"}, types.CodeCommandInvalid)

	c.ok(&frame.Frame{Method: frame.QueueDeclare, Channel: 1, Queue: "q", Durable: false})
	c.fail(&frame.Frame{Method: frame.QueueDeclare, Channel: 1, Queue: "q", Durable: true}, types.CodePreconditionFailed)

	c.fail(&frame.Frame{Method: frame.QueueBind, Channel: 1, Exchange: "missing", Queue: "q"}, types.CodeNotFound)
	c.fail(&frame.Frame{Method: frame.QueueBind, Channel: 1, Exchange: "ex", Queue: "missing"}, types.CodeNotFound)
	c.fail(&frame.Frame{Method: frame.BasicPublish, Channel: 1, Exchange: "missing"}, types.CodeNotFound)
	c.fail(&frame.Frame{Method: frame.BasicConsume, Channel: 1, Queue: "missing"}, types.CodeNotFound)

	c.fail(&frame.Frame{Method: frame.ExchangeDeclare, Channel: 1, Exchange: "typeless"}, types.CodeSyntaxError)
	c.fail(&frame.Frame{Method: frame.QueueBind, Channel: 1, Exchange: "ex"}, types.CodeSyntaxError)
	c.fail(&frame.Frame{Method: frame.BasicConsume, Channel: 1, Queue: "q", Prefetch: -1}, types.CodeSyntaxError)
	require.False(t, b.host.ExchangeExists("typeless"))

	r := c.ok(&frame.Frame{Method: frame.QueueDeclare, Channel: 1})
	require.True(t, strings.HasPrefix(r.Queue, "amq.gen-"), r.Queue)

	r = c.ok(&frame.Frame{Method: frame.QueueDeclare, Channel: 1, Queue: "args", Args: types.Args{"k1": "v1"}})
	require.Equal(t, "args", r.Queue)

	q, err := b.host.Queue("args")
	require.NoError(t, err)
	require.Equal(t, "k1=v1&", q.GetArgs())
}

func TestPublishConsumeAck(t *testing.T) {
	b := newBroker(t)
	c := b.dial(t)
	c.open()
	c.topology("direct")

	// published before consumer exists, delivery must follow consume response
	c.ok(&frame.Frame{Method: frame.BasicPublish, Channel: 1, Exchange: "ex", RoutingKey: "k", MessageID: "m1", Body: []byte("one")})
	c.ok(&frame.Frame{Method: frame.BasicPublish, Channel: 1, Exchange: "ex", RoutingKey: "other", MessageID: "lost"})

	r := c.ok(&frame.Frame{Method: frame.BasicConsume, Channel: 1, Queue: "q", ConsumerTag: "c1"})
	require.Equal(t, "c1", r.ConsumerTag)

	d := c.event()
	require.Equal(t, frame.BasicDeliver, d.Method)
	require.Equal(t, uint16(1), d.Channel)
	require.Equal(t, "c1", d.ConsumerTag)
	require.Equal(t, "q", d.Queue)
	require.Equal(t, "m1", d.MessageID)
	require.Equal(t, "k", d.RoutingKey)
	require.Equal(t, []byte("one"), d.Body)
	require.False(t, d.Redelivered)

	// prefetch 1 holds next message until ack
	c.ok(&frame.Frame{Method: frame.BasicPublish, Channel: 1, Exchange: "ex", RoutingKey: "k", MessageID: "m2"})
	c.noEvent()

	c.ok(&frame.Frame{Method: frame.BasicAck, Channel: 1, Queue: "q", MessageID: "m1"})
	c.fail(&frame.Frame{Method: frame.BasicAck, Channel: 1, Queue: "q", MessageID: "m1"}, types.CodePreconditionFailed)

	d = c.event()
	require.Equal(t, "m2", d.MessageID)

	c.fail(&frame.Frame{Method: frame.BasicConsume, Channel: 1, Queue: "q", ConsumerTag: "c1"}, types.CodeNotAllowed)

	c.ok(&frame.Frame{Method: frame.BasicCancel, Channel: 1, ConsumerTag: "c1"})
	c.fail(&frame.Frame{Method: frame.BasicCancel, Channel: 1, ConsumerTag: "c1"}, types.CodeNotFound)

	// m2 was requeued by cancel
	q, err := b.host.Queue("q")
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())

	snap := b.metrics.Snapshot()
	require.Equal(t, uint64(3), snap.Published)
	require.Equal(t, uint64(1), snap.Unroutable)
	require.Equal(t, uint64(1), snap.Acked)
}

func TestAutoAckGeneratedTag(t *testing.T) {
	b := newBroker(t)
	c := b.dial(t)
	c.open()
	c.topology("fanout")

	r := c.ok(&frame.Frame{Method: frame.BasicConsume, Channel: 1, Queue: "q", AutoAck: true})
	require.True(t, strings.HasPrefix(r.ConsumerTag, "ctag-"))

	for _, id := range []string{"a", "b", "c"} {
		c.ok(&frame.Frame{Method: frame.BasicPublish, Channel: 1, Exchange: "ex", MessageID: id})
	}

	for _, id := range []string{"a", "b", "c"} {
		d := c.event()
		require.Equal(t, id, d.MessageID)
		require.Equal(t, r.ConsumerTag, d.ConsumerTag)
	}

	c.fail(&frame.Frame{Method: frame.BasicAck, Channel: 1, Queue: "q", MessageID: "a"}, types.CodePreconditionFailed)
}

func TestRequeueOnDisconnect(t *testing.T) {
	b := newBroker(t)

	first := b.dial(t)
	first.open()
	first.topology("direct")

	first.ok(&frame.Frame{Method: frame.BasicConsume, Channel: 1, Queue: "q", ConsumerTag: "c1"})
	first.ok(&frame.Frame{Method: frame.BasicPublish, Channel: 1, Exchange: "ex", RoutingKey: "k", MessageID: "m1"})

	d := first.event()
	require.Equal(t, "m1", d.MessageID)
	require.False(t, d.Redelivered)

	first.ok(&frame.Frame{Method: frame.ConnectionClose})
	first.waitClosed()

	second := b.dial(t)
	second.open()
	second.ok(&frame.Frame{Method: frame.BasicConsume, Channel: 1, Queue: "q", ConsumerTag: "c2"})

	d = second.event()
	require.Equal(t, "m1", d.MessageID)
	require.True(t, d.Redelivered)

	second.ok(&frame.Frame{Method: frame.BasicAck, Channel: 1, Queue: "q", MessageID: "m1"})
}

func TestChannelCloseRequeues(t *testing.T) {
	b := newBroker(t)
	c := b.dial(t)
	c.open()
	c.topology("direct")
	c.ok(&frame.Frame{Method: frame.ChannelOpen, Channel: 2})

	c.ok(&frame.Frame{Method: frame.BasicConsume, Channel: 2, Queue: "q", ConsumerTag: "c1"})
	c.ok(&frame.Frame{Method: frame.BasicPublish, Channel: 1, Exchange: "ex", RoutingKey: "k", MessageID: "m1"})

	d := c.event()
	require.Equal(t, uint16(2), d.Channel)

	c.ok(&frame.Frame{Method: frame.ChannelClose, Channel: 2})
	c.ok(&frame.Frame{Method: frame.BasicConsume, Channel: 1, Queue: "q", ConsumerTag: "c1"})

	d = c.event()
	require.Equal(t, uint16(1), d.Channel)
	require.Equal(t, "m1", d.MessageID)
	require.True(t, d.Redelivered)
}

func TestExclusiveQueue(t *testing.T) {
	b := newBroker(t)

	owner := b.dial(t)
	owner.open()
	owner.ok(&frame.Frame{Method: frame.QueueDeclare, Channel: 1, Queue: "private", Exclusive: true})

	other := b.dial(t)
	other.open()
	other.fail(&frame.Frame{Method: frame.BasicConsume, Channel: 1, Queue: "private"}, types.CodeResourceLocked)
	other.fail(&frame.Frame{Method: frame.QueueDeclare, Channel: 1, Queue: "private", Exclusive: true}, types.CodeResourceLocked)

	owner.ok(&frame.Frame{Method: frame.BasicConsume, Channel: 1, Queue: "private"})

	owner.ok(&frame.Frame{Method: frame.ConnectionClose})
	owner.waitClosed()

	require.Eventually(t, func() bool { return !b.host.QueueExists("private") }, time.Second, 10*time.Millisecond)
}

func TestDeleteCascade(t *testing.T) {
	b := newBroker(t)
	c := b.dial(t)
	c.open()
	c.topology("direct")

	c.ok(&frame.Frame{Method: frame.BasicPublish, Channel: 1, Exchange: "ex", RoutingKey: "k"})
	c.ok(&frame.Frame{Method: frame.BasicPublish, Channel: 1, Exchange: "ex", RoutingKey: "k"})

	c.fail(&frame.Frame{Method: frame.ExchangeDelete, Channel: 1, Exchange: "ex", IfUnused: true}, types.CodePreconditionFailed)
	c.ok(&frame.Frame{Method: frame.ExchangeDelete, Channel: 1, Exchange: "ex"})
	c.fail(&frame.Frame{Method: frame.BasicPublish, Channel: 1, Exchange: "ex", RoutingKey: "k"}, types.CodeNotFound)

	r := c.ok(&frame.Frame{Method: frame.QueueDelete, Channel: 1, Queue: "q"})
	require.Equal(t, 2, r.MessageCount)
	c.fail(&frame.Frame{Method: frame.QueueDelete, Channel: 1, Queue: "q"}, types.CodeNotFound)
}

func TestMalformedFrames(t *testing.T) {
	b := newBroker(t)
	c := b.dial(t)
	c.open()

	header := func(size int) {
		buf := make([]byte, frame.HeaderSize)
		binary.BigEndian.PutUint32(buf, uint32(size))

		_, err := c.cn.Write(buf)
		require.NoError(t, err)
	}

	raw := func(payload []byte) {
		header(len(payload))

		_, err := c.cn.Write(payload)
		require.NoError(t, err)
	}

	raw([]byte("{"))
	r := <-c.resp
	require.False(t, r.OK)
	require.Equal(t, uint16(types.CodeSyntaxError), r.Code)

	raw([]byte(`{"channel":1}`))
	r = <-c.resp
	require.Equal(t, uint16(types.CodeCommandInvalid), r.Code)

	// still usable
	c.ok(&frame.Frame{Method: frame.QueueDeclare, Channel: 1, Queue: "q"})

	// over limit, stream cannot continue
	header(2048)
	c.waitClosed()
}

func TestManagerShutdown(t *testing.T) {
	b := newBroker(t)

	c := b.dial(t)
	c.open()

	require.Eventually(t, func() bool { return b.manager.Count() == 1 }, time.Second, 10*time.Millisecond)

	id := b.manager.List()[0]
	conn, ok := b.manager.Connection(id)
	require.True(t, ok)
	require.Equal(t, StateEstablished, conn.State())
	require.Equal(t, []uint16{1}, conn.Channels())

	ch, ok := b.manager.Channel(id, 1)
	require.True(t, ok)
	require.Equal(t, ChannelOpen, ch.State())

	b.manager.Shutdown()
	c.waitClosed()

	require.Equal(t, StateClosed, conn.State())
	require.Equal(t, ChannelClosed, ch.State())
	require.Equal(t, 0, b.manager.Count())

	srv, cl := net.Pipe()
	defer cl.Close() // nolint: errcheck
	require.Equal(t, ErrShutdown, b.manager.OnConnection(srv))
}

func TestConsumeRacingClose(t *testing.T) {
	b := newBroker(t)

	c := b.dial(t)
	c.open()
	c.topology("direct")

	id := b.manager.List()[0]

	for i := uint16(2); i < 66; i++ {
		c.ok(&frame.Frame{Method: frame.ChannelOpen, Channel: i})

		ch, ok := b.manager.Channel(id, i)
		require.True(t, ok)

		var wg sync.WaitGroup
		var err error
		wg.Add(2)

		go func() {
			defer wg.Done()
			_, err = ch.consume("q", "", false, 1)
		}()

		go func() {
			defer wg.Done()
			ch.Close()
		}()

		wg.Wait()

		if err != nil {
			require.Equal(t, types.CodeChannelError, types.CodeOf(err))
		}
		require.Equal(t, ChannelClosed, ch.State())
		require.Equal(t, 0, b.host.Consumers("q"), "channel %d", i)
	}
}

func TestInvokeRecoversPanic(t *testing.T) {
	srv, cl := net.Pipe()
	defer cl.Close() // nolint: errcheck

	c, err := New(NetConn(srv), VHosts(func(string) (*vhost.VirtualHost, bool) { return nil, false }))
	require.NoError(t, err)

	s := c.(*impl)

	// channel without virtual host panics on first operation
	ch := newChannel(1, s, nil)

	f := &frame.Frame{Method: frame.ExchangeDeclare, Channel: 1, Exchange: "ex", ExchangeType: "direct"}
	after, err := s.invoke(ch, f, f.Reply())
	require.Error(t, err)
	require.Equal(t, types.CodeInternalError, types.CodeOf(err))
	require.NotNil(t, after)
}

func TestNewRequiresTransport(t *testing.T) {
	_, err := New(VHosts(func(string) (*vhost.VirtualHost, bool) { return nil, false }))
	require.Error(t, err)

	srv, cl := net.Pipe()
	defer cl.Close() // nolint: errcheck

	_, err = New(NetConn(srv))
	require.Error(t, err)

	_, err = New(NetConn(srv), NetConn(srv))
	require.Error(t, err)
}
