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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/rabbitlite/message"
	"github.com/VolantMQ/rabbitlite/queue"
	"github.com/VolantMQ/rabbitlite/types"
)

type fakeOwner struct {
	name string
	lock sync.Mutex
	got  []*Delivery
	fail bool
	ch   chan *Delivery
}

func newOwner(name string) *fakeOwner {
	return &fakeOwner{
		name: name,
		ch:   make(chan *Delivery, 128),
	}
}

func (o *fakeOwner) Deliver(d *Delivery) error {
	o.lock.Lock()
	defer o.lock.Unlock()

	if o.fail {
		return errors.New("closed")
	}

	o.got = append(o.got, d)
	o.ch <- d

	return nil
}

func (o *fakeOwner) wait(t *testing.T) *Delivery {
	select {
	case d := <-o.ch:
		return d
	case <-time.After(2 * time.Second):
		require.FailNow(t, "delivery timeout", o.name)
	}

	return nil
}

func (o *fakeOwner) none(t *testing.T) {
	select {
	case d := <-o.ch:
		require.FailNow(t, "unexpected delivery", "%s got %s", o.name, string(d.Item.Msg.Body()))
	case <-time.After(50 * time.Millisecond):
	}
}

func setup(t *testing.T, autoDelete bool) (*Manager, *queue.Manager, func(string)) {
	queues := queue.NewManager(nil, nil)
	_, _, err := queues.Declare("q", false, false, autoDelete, nil, "")
	require.NoError(t, err)

	pool := types.NewPool(4, 16, 1)
	t.Cleanup(func() {
		pool.Close() // nolint: errcheck
	})

	m := NewManager(Config{
		Queues:   queues,
		Pool:     pool,
		Prefetch: 1,
	})

	publish := func(body string) {
		_, err := queues.Enqueue("q", message.New(message.Properties{}, []byte(body)))
		require.NoError(t, err)
		m.Dispatch("q")
	}

	return m, queues, publish
}

func TestRoundRobin(t *testing.T) {
	m, _, publish := setup(t, false)

	o1 := newOwner("o1")
	o2 := newOwner("o2")

	_, err := m.Add("q", o1, "c1", true, 0)
	require.NoError(t, err)
	_, err = m.Add("q", o2, "c2", true, 0)
	require.NoError(t, err)

	for _, b := range []string{"1", "2", "3", "4"} {
		publish(b)
	}

	require.Equal(t, "1", string(o1.wait(t).Item.Msg.Body()))
	require.Equal(t, "2", string(o2.wait(t).Item.Msg.Body()))
	require.Equal(t, "3", string(o1.wait(t).Item.Msg.Body()))
	require.Equal(t, "4", string(o2.wait(t).Item.Msg.Body()))
}

func TestPrefetchAndAck(t *testing.T) {
	m, queues, publish := setup(t, false)

	o := newOwner("o")
	_, err := m.Add("q", o, "c", false, 0)
	require.NoError(t, err)

	publish("1")
	publish("2")

	d := o.wait(t)
	require.Equal(t, "1", string(d.Item.Msg.Body()))
	require.Equal(t, "c", d.ConsumerTag)

	// prefetch 1 holds second message until ack
	o.none(t)
	require.Equal(t, 1, m.Unacked("q"))

	q, err := queues.Select("q")
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())

	require.NoError(t, m.Ack(o, "q", d.Item.Msg.ID()))

	d = o.wait(t)
	require.Equal(t, "2", string(d.Item.Msg.Body()))

	err = m.Ack(o, "q", "unknown")
	require.Equal(t, types.CodePreconditionFailed, types.CodeOf(err))

	// only owner may ack
	err = m.Ack(newOwner("other"), "q", d.Item.Msg.ID())
	require.Equal(t, types.CodePreconditionFailed, types.CodeOf(err))
}

func TestRequeueOnCancel(t *testing.T) {
	m, _, publish := setup(t, false)

	o1 := newOwner("o1")
	_, err := m.Add("q", o1, "c1", false, 0)
	require.NoError(t, err)

	publish("1")

	d := o1.wait(t)
	require.False(t, d.Item.Redelivered)

	o2 := newOwner("o2")
	_, err = m.Add("q", o2, "c2", false, 0)
	require.NoError(t, err)

	// o2 idle but message is held by o1
	o2.none(t)

	require.Equal(t, []string{"c1"}, m.CancelAll(o1))

	d = o2.wait(t)
	require.Equal(t, "1", string(d.Item.Msg.Body()))
	require.True(t, d.Item.Redelivered)

	o1.none(t)
}

func TestCancel(t *testing.T) {
	m, _, publish := setup(t, false)

	o := newOwner("o")
	_, err := m.Add("q", o, "c", false, 0)
	require.NoError(t, err)

	_, err = m.Add("q", o, "c", false, 0)
	require.Equal(t, types.CodeNotAllowed, types.CodeOf(err))

	require.NoError(t, m.Cancel(o, "c"))
	require.Equal(t, types.CodeNotFound, types.CodeOf(m.Cancel(o, "c")))
	require.Equal(t, 0, m.Count("q"))

	publish("1")
	o.none(t)
}

func TestGeneratedTag(t *testing.T) {
	m, _, _ := setup(t, false)

	c, err := m.Add("q", newOwner("o"), "", false, 0)
	require.NoError(t, err)
	require.NotEmpty(t, c.Tag())

	_, err = m.Add("missing", newOwner("o"), "", false, 0)
	require.Equal(t, types.CodeNotFound, types.CodeOf(err))
}

func TestAutoDeleteOnLastCancel(t *testing.T) {
	m, _, _ := setup(t, true)

	idle := make(chan string, 1)
	m.OnIdle = func(q string) {
		idle <- q
	}

	o := newOwner("o")
	_, err := m.Add("q", o, "c1", false, 0)
	require.NoError(t, err)
	_, err = m.Add("q", o, "c2", false, 0)
	require.NoError(t, err)

	require.NoError(t, m.Cancel(o, "c1"))
	require.Empty(t, idle)

	require.NoError(t, m.Cancel(o, "c2"))
	require.Equal(t, "q", <-idle)
}

func TestFailedAutoAckDeliveryRequeued(t *testing.T) {
	m, queues, publish := setup(t, false)

	o := newOwner("o")
	o.fail = true

	_, err := m.Add("q", o, "c", true, 0)
	require.NoError(t, err)

	publish("1")

	q, err := queues.Select("q")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return q.Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemoveQueue(t *testing.T) {
	m, _, publish := setup(t, false)

	o := newOwner("o")
	_, err := m.Add("q", o, "c", false, 0)
	require.NoError(t, err)

	publish("1")
	o.wait(t)

	removed := m.RemoveQueue("q")
	require.Len(t, removed, 1)
	require.Equal(t, 0, m.Count("q"))
	require.Equal(t, types.CodeNotFound, types.CodeOf(m.Cancel(o, "c")))
}

func TestNoDoubleDelivery(t *testing.T) {
	m, _, publish := setup(t, false)

	owners := []*fakeOwner{newOwner("o1"), newOwner("o2"), newOwner("o3")}
	for i, o := range owners {
		_, err := m.Add("q", o, "c", false, 5)
		require.NoError(t, err, i)
	}

	for i := 0; i < 12; i++ {
		publish(string(rune('a' + i)))
	}

	seen := make(map[string]string)
	for _, o := range owners {
		for i := 0; i < 4; i++ {
			d := o.wait(t)
			prev, dup := seen[d.Item.Msg.ID()]
			require.False(t, dup, "message delivered to %s and %s", prev, o.name)
			seen[d.Item.Msg.ID()] = o.name
		}
	}

	require.Len(t, seen, 12)
}

func TestRepeatedMessageID(t *testing.T) {
	m, queues, _ := setup(t, false)

	o := newOwner("o")
	_, err := m.Add("q", o, "c", false, 2)
	require.NoError(t, err)

	for _, body := range []string{"1", "2", "3"} {
		_, err = queues.Enqueue("q", message.New(message.Properties{ID: "same"}, []byte(body)))
		require.NoError(t, err)
	}
	m.Dispatch("q")

	require.Equal(t, "1", string(o.wait(t).Item.Msg.Body()))
	require.Equal(t, "2", string(o.wait(t).Item.Msg.Body()))
	require.Equal(t, 2, m.Unacked("q"))

	// oldest delivery with the id is acked first
	require.NoError(t, m.Ack(o, "q", "same"))
	d := o.wait(t)
	require.Equal(t, "3", string(d.Item.Msg.Body()))
	require.Equal(t, 2, m.Unacked("q"))

	require.Equal(t, []string{"c"}, m.CancelAll(o))

	q, err := queues.Select("q")
	require.NoError(t, err)
	require.Equal(t, 2, q.Len())

	item, _ := q.Pop()
	require.Equal(t, "2", string(item.Msg.Body()))
	require.True(t, item.Redelivered)
	item, _ = q.Pop()
	require.Equal(t, "3", string(item.Msg.Body()))
}
