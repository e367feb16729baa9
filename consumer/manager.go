// Copyright (c) 2014 The VolantMQ Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package consumer

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/VolantMQ/rabbitlite/configuration"
	"github.com/VolantMQ/rabbitlite/queue"
	"github.com/VolantMQ/rabbitlite/types"
)

// group consumers of one queue
type group struct {
	lock      sync.Mutex
	queue     *queue.Queue
	consumers []*Consumer
	next      int

	// deliveries waiting for flush, written by one task at a time to keep queue order
	pending  []*pendingDelivery
	flushing bool
}

type pendingDelivery struct {
	c    *Consumer
	item *queue.Item
}

type ownerKey struct {
	owner Owner
	tag   string
}

// Config of consumer manager
type Config struct {
	Queues *queue.Manager
	Pool   types.Pool
	// Prefetch applied when consumer does not request own, 0 means unlimited
	Prefetch int
	// OnIdle invoked when last consumer of auto-delete queue is cancelled
	OnIdle func(queue string)
	// OnDelivered invoked after successful write
	OnDelivered func(d *Delivery)
}

// Manager tracks consumers of all queues within virtual host
type Manager struct {
	Config
	log *zap.SugaredLogger

	lock   sync.Mutex
	groups map[string]*group
	owners map[ownerKey]*Consumer
}

// NewManager allocate consumer manager
func NewManager(c Config) *Manager {
	return &Manager{
		Config: c,
		log:    configuration.GetLogger().Named("consumer"),
		groups: make(map[string]*group),
		owners: make(map[ownerKey]*Consumer),
	}
}

// Add subscribes owner to queue
// Empty tag is replaced with generated one
func (m *Manager) Add(queueName string, owner Owner, tag string, autoAck bool, prefetch int) (*Consumer, error) {
	q, err := m.Queues.Select(queueName)
	if err != nil {
		return nil, err
	}

	if tag == "" {
		tag = "ctag-" + uuid.New().String()
	}

	if prefetch <= 0 {
		prefetch = m.Prefetch
	}

	c := &Consumer{
		tag:      tag,
		queue:    queueName,
		owner:    owner,
		autoAck:  autoAck,
		prefetch: prefetch,
		unacked:  make(map[uint64]*queue.Item),
	}

	m.lock.Lock()
	key := ownerKey{owner: owner, tag: tag}
	if _, ok := m.owners[key]; ok {
		m.lock.Unlock()
		return nil, errors.Wrapf(types.CodeNotAllowed, "consumer tag %q already in use", tag)
	}

	g, ok := m.groups[queueName]
	if !ok || g.queue != q {
		g = &group{queue: q}
		m.groups[queueName] = g
	}

	m.owners[key] = c

	g.lock.Lock()
	g.consumers = append(g.consumers, c)
	g.lock.Unlock()
	m.lock.Unlock()

	m.Dispatch(queueName)

	return c, nil
}

// Cancel removes consumer and requeues its unacked messages
func (m *Manager) Cancel(owner Owner, tag string) error {
	m.lock.Lock()
	key := ownerKey{owner: owner, tag: tag}
	c, ok := m.owners[key]
	if !ok {
		m.lock.Unlock()
		return errors.Wrapf(types.CodeNotFound, "consumer tag %q", tag)
	}

	delete(m.owners, key)
	g := m.groups[c.queue]
	m.lock.Unlock()

	m.release(g, c)

	return nil
}

// CancelAll removes every consumer of owner
func (m *Manager) CancelAll(owner Owner) []string {
	var tags []string

	m.lock.Lock()
	var released []*Consumer
	for key, c := range m.owners {
		if key.owner == owner {
			delete(m.owners, key)
			released = append(released, c)
			tags = append(tags, key.tag)
		}
	}

	groups := make([]*group, 0, len(released))
	for _, c := range released {
		groups = append(groups, m.groups[c.queue])
	}
	m.lock.Unlock()

	for i, c := range released {
		m.release(groups[i], c)
	}

	return tags
}

// release detaches consumer from group, returns its messages to queue head
func (m *Manager) release(g *group, c *Consumer) {
	if g == nil {
		return
	}

	g.lock.Lock()
	for i, gc := range g.consumers {
		if gc == c {
			g.consumers = append(g.consumers[:i], g.consumers[i+1:]...)
			if g.next > i {
				g.next--
			}
			break
		}
	}

	c.cancelled = true
	items := c.drain()
	empty := len(g.consumers) == 0
	g.lock.Unlock()

	if len(items) > 0 {
		g.queue.Requeue(items)
		m.log.Debugw("requeued unacked messages", "queue", c.queue, "consumer", c.tag, "count", len(items))
	}

	if empty && g.queue.AutoDelete() && m.OnIdle != nil {
		m.OnIdle(c.queue)
		return
	}

	m.Dispatch(c.queue)
}

// RemoveQueue drops consumers of deleted queue, their unacked messages are discarded
func (m *Manager) RemoveQueue(name string) []*Consumer {
	m.lock.Lock()
	g, ok := m.groups[name]
	if !ok {
		m.lock.Unlock()
		return nil
	}

	delete(m.groups, name)

	g.lock.Lock()
	consumers := g.consumers
	g.consumers = nil
	for _, c := range consumers {
		delete(m.owners, ownerKey{owner: c.owner, tag: c.tag})
		c.cancelled = true
		c.unacked = make(map[uint64]*queue.Item)
	}
	g.lock.Unlock()
	m.lock.Unlock()

	return consumers
}

// Ack acknowledges message delivered to one of owner consumers on queue
func (m *Manager) Ack(owner Owner, queueName string, messageID string) error {
	m.lock.Lock()
	g, ok := m.groups[queueName]
	m.lock.Unlock()

	if !ok {
		return errors.Wrapf(types.CodePreconditionFailed, "unknown delivery %q on queue %q", messageID, queueName)
	}

	var item *queue.Item

	g.lock.Lock()
	for _, c := range g.consumers {
		if c.owner != owner {
			continue
		}

		if item = c.take(messageID); item != nil {
			break
		}
	}
	g.lock.Unlock()

	if item == nil {
		return errors.Wrapf(types.CodePreconditionFailed, "unknown delivery %q on queue %q", messageID, queueName)
	}

	if err := m.Queues.Ack(queueName, item); err != nil {
		return err
	}

	m.Dispatch(queueName)

	return nil
}

// Count consumers of queue
func (m *Manager) Count(queueName string) int {
	m.lock.Lock()
	g, ok := m.groups[queueName]
	m.lock.Unlock()

	if !ok {
		return 0
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	return len(g.consumers)
}

// Unacked number of messages awaiting ack on queue
func (m *Manager) Unacked(queueName string) int {
	m.lock.Lock()
	g, ok := m.groups[queueName]
	m.lock.Unlock()

	if !ok {
		return 0
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	var res int
	for _, c := range g.consumers {
		res += len(c.unacked)
	}

	return res
}

// pick next idle consumer by rotation, must be called with group lock held
func (g *group) pick() *Consumer {
	n := len(g.consumers)
	for i := 0; i < n; i++ {
		idx := (g.next + i) % n
		if c := g.consumers[idx]; c.idle() {
			g.next = (idx + 1) % n
			return c
		}
	}

	return nil
}

// Dispatch hands pending messages of queue to idle consumers
// Writes are executed on worker pool
func (m *Manager) Dispatch(queueName string) {
	m.lock.Lock()
	g, ok := m.groups[queueName]
	m.lock.Unlock()

	if !ok {
		return
	}

	g.lock.Lock()
	for {
		c := g.pick()
		if c == nil {
			break
		}

		item, ok := g.queue.Pop()
		if !ok {
			break
		}

		if !c.autoAck {
			c.unacked[item.Seq] = item
		}

		g.pending = append(g.pending, &pendingDelivery{c: c, item: item})
	}

	schedule := len(g.pending) > 0 && !g.flushing
	if schedule {
		g.flushing = true
	}
	g.lock.Unlock()

	if !schedule {
		return
	}

	if err := m.Pool.Schedule(func() { m.flush(g) }); err != nil {
		m.log.Warnw("couldn't schedule delivery, flushing inline", "queue", queueName, "error", err)
		m.flush(g)
	}
}

// flush writes pending deliveries of group in order
func (m *Manager) flush(g *group) {
	for {
		g.lock.Lock()
		batch := g.pending
		g.pending = nil
		if len(batch) == 0 {
			g.flushing = false
			g.lock.Unlock()
			return
		}
		g.lock.Unlock()

		for _, p := range batch {
			m.deliver(g, p)
		}
	}
}

func (m *Manager) deliver(g *group, p *pendingDelivery) {
	g.lock.Lock()
	active := !p.c.cancelled
	if active && !p.c.autoAck {
		// message requeued by cancel must not reach this consumer anymore
		_, active = p.c.unacked[p.item.Seq]
	}
	g.lock.Unlock()

	if !active {
		if p.c.autoAck {
			g.queue.Requeue([]*queue.Item{p.item})
			m.Dispatch(p.c.queue)
		}
		return
	}

	d := &Delivery{
		ConsumerTag: p.c.tag,
		Queue:       p.c.queue,
		Item:        p.item,
	}

	if err := p.c.owner.Deliver(d); err != nil {
		m.log.Debugw("delivery failed", "queue", d.Queue, "consumer", d.ConsumerTag, "error", err)

		if p.c.autoAck {
			// nobody else holds message
			g.queue.Requeue([]*queue.Item{p.item})
		}

		// unacked copy is requeued when owner cancels consumer
		return
	}

	if m.OnDelivered != nil {
		m.OnDelivered(d)
	}

	if p.c.autoAck {
		if err := m.Queues.Ack(d.Queue, p.item); err != nil {
			m.log.Errorw("couldn't remove persisted message", "queue", d.Queue, "id", p.item.Msg.ID(), "error", err)
		}
	}
}
