package connection

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/consumer"
	"github.com/VolantMQ/rabbitlite/exchange"
	"github.com/VolantMQ/rabbitlite/frame"
	"github.com/VolantMQ/rabbitlite/message"
	"github.com/VolantMQ/rabbitlite/queue"
	"github.com/VolantMQ/rabbitlite/types"
	"github.com/VolantMQ/rabbitlite/vhost"
)

// ChannelState of channel
type ChannelState int

// Channel states
const (
	ChannelOpen ChannelState = iota
	ChannelClosed
)

func (s ChannelState) String() string {
	if s == ChannelClosed {
		return "CLOSED"
	}

	return "OPEN"
}

// subscription consumer of channel
// deliveries are held in backlog until client got consume response
type subscription struct {
	queue   string
	ready   bool
	backlog []*frame.Frame
}

// Channel logical session multiplexed over connection
type Channel struct {
	id   uint16
	conn *impl
	host *vhost.VirtualHost

	// guards state and subscriptions, held while delivery is written to keep its order
	lock  sync.Mutex
	state ChannelState
	subs  map[string]*subscription
}

var _ consumer.Owner = (*Channel)(nil)

func newChannel(id uint16, conn *impl, host *vhost.VirtualHost) *Channel {
	return &Channel{
		id:   id,
		conn: conn,
		host: host,
		subs: make(map[string]*subscription),
	}
}

// ID ...
func (c *Channel) ID() uint16 {
	return c.id
}

// State ...
func (c *Channel) State() ChannelState {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state
}

// Consumers tags of channel consumers
func (c *Channel) Consumers() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	tags := make([]string, 0, len(c.subs))
	for tag := range c.subs {
		tags = append(tags, tag)
	}

	sort.Strings(tags)

	return tags
}

func (c *Channel) checkOpen() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.state != ChannelOpen {
		return errors.Wrapf(types.CodeChannelError, "channel %d is closed", c.id)
	}

	return nil
}

// DeclareExchange ...
func (c *Channel) DeclareExchange(name string, kind string, durable, autoDelete bool, args types.Args) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	t, err := exchange.ParseType(kind)
	if err != nil {
		return err
	}

	_, err = c.host.DeclareExchange(name, t, durable, autoDelete, args)

	return err
}

// DeleteExchange ...
func (c *Channel) DeleteExchange(name string, ifUnused bool) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	return c.host.DeleteExchange(name, ifUnused)
}

// DeclareQueue declares queue, empty name is replaced with generated one
func (c *Channel) DeclareQueue(name string, durable, exclusive, autoDelete bool, args types.Args) (*queue.Queue, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	if name == "" {
		name = "amq.gen-" + uuid.New().String()
	}

	return c.host.DeclareQueue(name, durable, exclusive, autoDelete, args, c.conn.id)
}

// DeleteQueue returns number of discarded messages
func (c *Channel) DeleteQueue(name string, ifUnused bool) (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}

	return c.host.DeleteQueue(name, ifUnused)
}

// Bind ...
func (c *Channel) Bind(exchangeName, queueName, key string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	return c.host.Bind(exchangeName, queueName, key)
}

// Unbind ...
func (c *Channel) Unbind(exchangeName, queueName, key string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	return c.host.Unbind(exchangeName, queueName, key)
}

// Publish ...
func (c *Channel) Publish(exchangeName string, props message.Properties, body []byte) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	_, err := c.host.Publish(exchangeName, props, body)

	return err
}

// Consume subscribes channel to queue and starts deliveries
// Returns consumer tag, generated if empty
func (c *Channel) Consume(queueName, tag string, autoAck bool, prefetch int) (string, error) {
	tag, err := c.consume(queueName, tag, autoAck, prefetch)
	if err != nil {
		return "", err
	}

	c.start(tag)

	return tag, nil
}

// consume registers subscription, deliveries are held until start
func (c *Channel) consume(queueName, tag string, autoAck bool, prefetch int) (string, error) {
	if tag == "" {
		tag = "ctag-" + uuid.New().String()
	}

	c.lock.Lock()
	if c.state != ChannelOpen {
		c.lock.Unlock()
		return "", errors.Wrapf(types.CodeChannelError, "channel %d is closed", c.id)
	}

	if _, ok := c.subs[tag]; ok {
		c.lock.Unlock()
		return "", errors.Wrapf(types.CodeNotAllowed, "consumer tag %q already in use", tag)
	}

	c.subs[tag] = &subscription{queue: queueName}
	c.lock.Unlock()

	// dispatch may deliver before Consume returns, hence lock is not held
	if _, err := c.host.Consume(queueName, c, c.conn.id, tag, autoAck, prefetch); err != nil {
		c.lock.Lock()
		delete(c.subs, tag)
		c.lock.Unlock()

		return "", err
	}

	// close may have run CancelAll while Consume was registering
	c.lock.Lock()
	closed := c.state == ChannelClosed
	c.lock.Unlock()

	if closed {
		c.host.Cancel(c, tag) // nolint: errcheck
		return "", errors.Wrapf(types.CodeChannelError, "channel %d is closed", c.id)
	}

	return tag, nil
}

// start flushes deliveries held for consumer
func (c *Channel) start(tag string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	sub, ok := c.subs[tag]
	if !ok || c.state != ChannelOpen {
		return
	}

	sub.ready = true

	for _, f := range sub.backlog {
		if err := c.conn.write(frame.BasicDeliver, f); err != nil {
			c.conn.log.Debugw("couldn't write delivery", "channel", c.id, "consumer", tag, "error", err)
			break
		}
	}

	sub.backlog = nil
}

// Cancel consumer, its unacked messages are requeued
func (c *Channel) Cancel(tag string) error {
	c.lock.Lock()
	if c.state != ChannelOpen {
		c.lock.Unlock()
		return errors.Wrapf(types.CodeChannelError, "channel %d is closed", c.id)
	}

	if _, ok := c.subs[tag]; !ok {
		c.lock.Unlock()
		return errors.Wrapf(types.CodeNotFound, "consumer tag %q", tag)
	}

	delete(c.subs, tag)
	c.lock.Unlock()

	return c.host.Cancel(c, tag)
}

// Ack message delivered to one of channel consumers
func (c *Channel) Ack(queueName, messageID string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	return c.host.Ack(c, queueName, messageID)
}

// Deliver writes message to client
func (c *Channel) Deliver(d *consumer.Delivery) error {
	msg := d.Item.Msg

	f := &frame.Frame{
		Channel:      c.id,
		ConsumerTag:  d.ConsumerTag,
		Queue:        d.Queue,
		MessageID:    msg.ID(),
		RoutingKey:   msg.RoutingKey(),
		DeliveryMode: uint8(msg.DeliveryMode()),
		Body:         msg.Body(),
		Redelivered:  d.Item.Redelivered,
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.state != ChannelOpen {
		return ErrClosed
	}

	sub, ok := c.subs[d.ConsumerTag]
	if !ok {
		return errors.Wrapf(types.CodeNotFound, "consumer tag %q", d.ConsumerTag)
	}

	if !sub.ready {
		sub.backlog = append(sub.backlog, f)
		return nil
	}

	return c.conn.write(frame.BasicDeliver, f)
}

// Close channel, consumers are cancelled and unacked messages requeued
func (c *Channel) Close() {
	c.conn.removeChannel(c.id)
	c.close()
}

func (c *Channel) close() {
	c.lock.Lock()
	if c.state == ChannelClosed {
		c.lock.Unlock()
		return
	}

	c.state = ChannelClosed
	c.subs = make(map[string]*subscription)
	c.lock.Unlock()

	// deliveries hit closed state from here and are requeued
	tags := c.host.CancelAll(c)

	c.conn.metric.ChannelClosed()

	c.conn.log.Debugw("channel closed", "channel", c.id, "consumers", len(tags))
}
