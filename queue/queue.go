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

// Package queue implements ordered message buffers and the per virtual host queue table.
package queue

import (
	"sync"

	"github.com/VolantMQ/rabbitlite/message"
	"github.com/VolantMQ/rabbitlite/persistence/types"
	"github.com/VolantMQ/rabbitlite/types"
)

// Item is a message copy owned by one queue
type Item struct {
	Msg         *message.Message
	Seq         uint64
	Redelivered bool
	// Persisted set when message body is kept in message store
	Persisted bool
}

// Queue ordered buffer of pending messages
type Queue struct {
	name       string
	durable    bool
	exclusive  bool
	autoDelete bool
	args       types.Args
	owner      string

	lock     sync.Mutex
	messages *types.Queue
	seq      uint64
}

func newQueue(name string, durable, exclusive, autoDelete bool, args types.Args, owner string) *Queue {
	return &Queue{
		name:       name,
		durable:    durable,
		exclusive:  exclusive,
		autoDelete: autoDelete,
		args:       args.Copy(),
		owner:      owner,
		messages:   types.NewQueue(),
	}
}

// Name ...
func (q *Queue) Name() string {
	return q.name
}

// Durable ...
func (q *Queue) Durable() bool {
	return q.durable
}

// Exclusive ...
func (q *Queue) Exclusive() bool {
	return q.exclusive
}

// AutoDelete ...
func (q *Queue) AutoDelete() bool {
	return q.autoDelete
}

// Owner id of connection exclusive queue belongs to
func (q *Queue) Owner() string {
	return q.owner
}

// Args returns copy of declare arguments
func (q *Queue) Args() types.Args {
	return q.args.Copy()
}

// GetArgs returns args rendered as "k1=v1&"
func (q *Queue) GetArgs() string {
	return q.args.String()
}

// Record persisted form of queue
func (q *Queue) Record() persistenceTypes.QueueRecord {
	return persistenceTypes.QueueRecord{
		Name:       q.name,
		Durable:    q.durable,
		Exclusive:  q.exclusive,
		AutoDelete: q.autoDelete,
		Args:       q.args.String(),
	}
}

// Len number of pending messages
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.messages.Length()
}

// Pop head message
func (q *Queue) Pop() (*Item, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.messages.Length() == 0 {
		return nil, false
	}

	return q.messages.Remove().(*Item), true
}

// Requeue returns items to the head of queue
// Items must be sorted by sequence, queued copies are marked redelivered
func (q *Queue) Requeue(items []*Item) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		item := *items[i]
		item.Redelivered = true
		q.messages.AddFront(&item)
	}
}

// Purge removes all pending messages and returns them
func (q *Queue) Purge() []*Item {
	q.lock.Lock()
	defer q.lock.Unlock()

	res := make([]*Item, 0, q.messages.Length())
	for i := 0; i < q.messages.Length(); i++ {
		res = append(res, q.messages.Get(i).(*Item))
	}

	q.messages.Clear()

	return res
}

// push appends message assigning next sequence
// persist is invoked under queue lock so sequence order matches buffer order
func (q *Queue) push(msg *message.Message, persist func(*Item) error) (*Item, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	item := &Item{
		Msg: msg,
		Seq: q.seq + 1,
	}

	if persist != nil {
		if err := persist(item); err != nil {
			return nil, err
		}

		item.Persisted = true
	}

	q.seq = item.Seq
	q.messages.Add(item)

	return item, nil
}

// restore appends reloaded item keeping its sequence
func (q *Queue) restore(item *Item) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if item.Seq > q.seq {
		q.seq = item.Seq
	}

	q.messages.Add(item)
}
