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

package queue

import (
	"bytes"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/message"
	"github.com/VolantMQ/rabbitlite/persistence/types"
	"github.com/VolantMQ/rabbitlite/types"
)

// Manager table of queues within virtual host
type Manager struct {
	lock     sync.RWMutex
	queues   map[string]*Queue
	meta     persistenceTypes.Bucket
	messages persistenceTypes.Bucket
}

// NewManager allocate queue table
// meta keeps queue records and messages keeps durable message bodies, both may be nil
func NewManager(meta persistenceTypes.Bucket, messages persistenceTypes.Bucket) *Manager {
	return &Manager{
		queues:   make(map[string]*Queue),
		meta:     meta,
		messages: messages,
	}
}

// Load durable queues and their messages
// Reloaded messages are marked redelivered
func (m *Manager) Load() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.meta != nil {
		err := m.meta.ForEach(func(k, v []byte) error {
			rec := persistenceTypes.QueueRecord{}
			if err := persistenceTypes.Decode(v, &rec); err != nil {
				return errors.Wrapf(err, "queue %q", string(k))
			}

			m.queues[rec.Name] = newQueue(rec.Name, rec.Durable, rec.Exclusive, rec.AutoDelete, types.ParseArgs(rec.Args), "")

			return nil
		})

		if err != nil {
			return err
		}
	}

	if m.messages == nil {
		return nil
	}

	// keys are ordered by queue then sequence
	return m.messages.ForEach(func(k, v []byte) error {
		rec := persistenceTypes.MessageRecord{}
		if err := persistenceTypes.Decode(v, &rec); err != nil {
			return errors.Wrapf(err, "message %q", string(k))
		}

		q, ok := m.queues[rec.Queue]
		if !ok {
			// queue deleted before its messages were removed
			return m.messages.Delete(k)
		}

		msg := message.New(message.Properties{
			ID:           rec.ID,
			DeliveryMode: message.DeliveryMode(rec.DeliveryMode),
			RoutingKey:   rec.RoutingKey,
		}, rec.Body)

		q.restore(&Item{
			Msg:         msg,
			Seq:         rec.Seq,
			Redelivered: true,
			Persisted:   true,
		})

		return nil
	})
}

// Declare queue
// Redeclare with same durable and exclusive flags returns existing queue
func (m *Manager) Declare(name string, durable, exclusive, autoDelete bool, args types.Args, owner string) (*Queue, bool, error) {
	if name == "" {
		return nil, false, errors.Wrap(types.CodeSyntaxError, "queue name is empty")
	}

	if strings.ContainsRune(name, 0) {
		return nil, false, errors.Wrapf(types.CodeSyntaxError, "queue name %q contains NUL", name)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if q, ok := m.queues[name]; ok {
		if q.durable != durable || q.exclusive != exclusive {
			return nil, false, errors.Wrapf(types.CodePreconditionFailed,
				"queue %q declared as durable=%t exclusive=%t", name, q.durable, q.exclusive)
		}

		if q.exclusive && q.owner != "" && q.owner != owner {
			return nil, false, errors.Wrapf(types.CodeResourceLocked, "queue %q is exclusive to another connection", name)
		}

		return q, false, nil
	}

	if !exclusive {
		owner = ""
	}

	q := newQueue(name, durable, exclusive, autoDelete, args, owner)

	if durable && m.meta != nil {
		data, err := persistenceTypes.Encode(q.Record())
		if err != nil {
			return nil, false, types.Persistence(err)
		}

		if err = m.meta.Put([]byte(name), data); err != nil {
			return nil, false, types.Persistence(err)
		}
	}

	m.queues[name] = q

	return q, true, nil
}

// Delete queue, its record and persisted messages
func (m *Manager) Delete(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	q, ok := m.queues[name]
	if !ok {
		return errors.Wrapf(types.CodeNotFound, "queue %q", name)
	}

	if q.durable {
		if m.meta != nil {
			if err := m.meta.Delete([]byte(name)); err != nil {
				return types.Persistence(err)
			}
		}

		if err := m.wipeMessages(name); err != nil {
			return err
		}
	}

	q.Purge()

	delete(m.queues, name)

	return nil
}

func (m *Manager) wipeMessages(name string) error {
	if m.messages == nil {
		return nil
	}

	prefix := persistenceTypes.MessagePrefix(name)

	var keys [][]byte

	err := m.messages.ForEach(func(k, v []byte) error {
		if bytes.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
		return nil
	})

	if err != nil {
		return types.Persistence(err)
	}

	for _, k := range keys {
		if err = m.messages.Delete(k); err != nil {
			return types.Persistence(err)
		}
	}

	return nil
}

// Enqueue appends message to the tail of queue
// Durable message routed to durable queue is persisted first
func (m *Manager) Enqueue(name string, msg *message.Message) (*Item, error) {
	q, err := m.Select(name)
	if err != nil {
		return nil, err
	}

	var persist func(*Item) error

	if q.durable && msg.Durable() && m.messages != nil {
		persist = func(item *Item) error {
			rec := persistenceTypes.MessageRecord{
				ID:           msg.ID(),
				DeliveryMode: uint8(msg.DeliveryMode()),
				RoutingKey:   msg.RoutingKey(),
				Queue:        name,
				Seq:          item.Seq,
				Body:         msg.Body(),
			}

			data, e := persistenceTypes.Encode(rec)
			if e != nil {
				return types.Persistence(e)
			}

			if e = m.messages.Put(rec.Key(), data); e != nil {
				return types.Persistence(e)
			}

			return nil
		}
	}

	return q.push(msg, persist)
}

// Ack removes persisted copy of acknowledged message
func (m *Manager) Ack(name string, item *Item) error {
	if !item.Persisted || m.messages == nil {
		return nil
	}

	if err := m.messages.Delete(persistenceTypes.MessageKey(name, item.Seq, item.Msg.ID())); err != nil {
		return types.Persistence(err)
	}

	return nil
}

// Select queue by name
func (m *Manager) Select(name string) (*Queue, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	q, ok := m.queues[name]
	if !ok {
		return nil, errors.Wrapf(types.CodeNotFound, "queue %q", name)
	}

	return q, nil
}

// Exists ...
func (m *Manager) Exists(name string) bool {
	m.lock.RLock()
	_, ok := m.queues[name]
	m.lock.RUnlock()

	return ok
}

// Size number of queues
func (m *Manager) Size() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.queues)
}

// Owned names of exclusive queues belonging to connection
func (m *Manager) Owned(owner string) []string {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var res []string
	for name, q := range m.queues {
		if q.exclusive && q.owner == owner {
			res = append(res, name)
		}
	}

	sort.Strings(res)

	return res
}

// List queues sorted by name
func (m *Manager) List() []*Queue {
	m.lock.RLock()
	res := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		res = append(res, q)
	}
	m.lock.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		return res[i].name < res[j].name
	})

	return res
}
