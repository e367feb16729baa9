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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/rabbitlite/message"
	"github.com/VolantMQ/rabbitlite/persistence/mem"
	"github.com/VolantMQ/rabbitlite/persistence/types"
	"github.com/VolantMQ/rabbitlite/types"
)

func newStores(t *testing.T) (persistenceTypes.Bucket, persistenceTypes.Bucket) {
	p, err := mem.New(&persistenceTypes.MemConfig{})
	require.NoError(t, err)

	meta, err := p.Bucket(persistenceTypes.KindQueues)
	require.NoError(t, err)

	msgs, err := p.Bucket(persistenceTypes.KindMessages)
	require.NoError(t, err)

	return meta, msgs
}

func durableMsg(body string) *message.Message {
	return message.New(message.Properties{DeliveryMode: message.Durable, RoutingKey: "rk"}, []byte(body))
}

func TestExistsAfterDeclareAndDelete(t *testing.T) {
	m := NewManager(nil, nil)

	_, created, err := m.Declare("q1", false, false, false, nil, "")
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, m.Exists("q1"))
	require.Equal(t, 1, m.Size())

	require.NoError(t, m.Delete("q1"))
	require.False(t, m.Exists("q1"))
	require.Equal(t, types.CodeNotFound, types.CodeOf(m.Delete("q1")))
}

func TestDeclareIdempotent(t *testing.T) {
	m := NewManager(nil, nil)

	q1, _, err := m.Declare("q1", true, false, false, types.Args{"k1": "v1"}, "")
	require.NoError(t, err)

	q2, created, err := m.Declare("q1", true, false, true, nil, "")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, q1, q2)
	require.Equal(t, 1, m.Size())
}

func TestDeclareConflict(t *testing.T) {
	m := NewManager(nil, nil)

	_, _, err := m.Declare("q1", true, false, false, nil, "")
	require.NoError(t, err)

	_, _, err = m.Declare("q1", false, false, false, nil, "")
	require.Equal(t, types.CodePreconditionFailed, types.CodeOf(err))

	_, _, err = m.Declare("q1", true, true, false, nil, "")
	require.Equal(t, types.CodePreconditionFailed, types.CodeOf(err))

	_, _, err = m.Declare("", true, true, false, nil, "")
	require.Equal(t, types.CodeSyntaxError, types.CodeOf(err))
}

func TestExclusiveOwner(t *testing.T) {
	m := NewManager(nil, nil)

	q, _, err := m.Declare("private", false, true, false, nil, "conn-1")
	require.NoError(t, err)
	require.Equal(t, "conn-1", q.Owner())

	_, _, err = m.Declare("private", false, true, false, nil, "conn-2")
	require.Equal(t, types.CodeResourceLocked, types.CodeOf(err))

	_, _, err = m.Declare("private", false, true, false, nil, "conn-1")
	require.NoError(t, err)

	_, _, err = m.Declare("shared", false, false, false, nil, "conn-1")
	require.NoError(t, err)

	require.Equal(t, []string{"private"}, m.Owned("conn-1"))
	require.Empty(t, m.Owned("conn-2"))
}

func TestGetArgs(t *testing.T) {
	m := NewManager(nil, nil)

	q, _, err := m.Declare("q1", false, false, false, types.Args{"k1": "v1"}, "")
	require.NoError(t, err)
	require.Equal(t, "k1=v1&", q.GetArgs())
}

func TestEnqueueFIFO(t *testing.T) {
	m := NewManager(nil, nil)

	_, _, err := m.Declare("q1", false, false, false, nil, "")
	require.NoError(t, err)

	for _, b := range []string{"1", "2", "3"} {
		_, err = m.Enqueue("q1", message.New(message.Properties{}, []byte(b)))
		require.NoError(t, err)
	}

	_, err = m.Enqueue("missing", message.New(message.Properties{}, nil))
	require.Equal(t, types.CodeNotFound, types.CodeOf(err))

	q, err := m.Select("q1")
	require.NoError(t, err)
	require.Equal(t, 3, q.Len())

	var seq uint64
	for _, b := range []string{"1", "2", "3"} {
		item, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, b, string(item.Msg.Body()))
		require.True(t, item.Seq > seq)
		seq = item.Seq
	}

	_, ok := q.Pop()
	require.False(t, ok)
}

func TestRequeueToHead(t *testing.T) {
	m := NewManager(nil, nil)

	q, _, err := m.Declare("q1", false, false, false, nil, "")
	require.NoError(t, err)

	for _, b := range []string{"1", "2", "3"} {
		_, err = m.Enqueue("q1", message.New(message.Properties{}, []byte(b)))
		require.NoError(t, err)
	}

	first, _ := q.Pop()
	second, _ := q.Pop()

	q.Requeue([]*Item{first, second})

	for _, b := range []string{"1", "2", "3"} {
		item, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, b, string(item.Msg.Body()))
		require.Equal(t, b != "3", item.Redelivered)
	}
}

func TestDurabilityRoundTrip(t *testing.T) {
	meta, msgs := newStores(t)

	m := NewManager(meta, msgs)

	_, _, err := m.Declare("durable", true, false, true, types.Args{"k1": "v1"}, "")
	require.NoError(t, err)
	_, _, err = m.Declare("transient", false, false, false, nil, "")
	require.NoError(t, err)

	_, err = m.Enqueue("durable", durableMsg("a"))
	require.NoError(t, err)
	_, err = m.Enqueue("durable", message.New(message.Properties{}, []byte("not persisted")))
	require.NoError(t, err)
	_, err = m.Enqueue("durable", durableMsg("b"))
	require.NoError(t, err)
	_, err = m.Enqueue("transient", durableMsg("lost"))
	require.NoError(t, err)

	reloaded := NewManager(meta, msgs)
	require.NoError(t, reloaded.Load())

	require.False(t, reloaded.Exists("transient"))
	require.True(t, reloaded.Exists("durable"))

	q, err := reloaded.Select("durable")
	require.NoError(t, err)
	require.True(t, q.Durable())
	require.False(t, q.Exclusive())
	require.True(t, q.AutoDelete())
	require.Equal(t, "k1=v1&", q.GetArgs())
	require.Equal(t, 2, q.Len())

	a, _ := q.Pop()
	require.Equal(t, "a", string(a.Msg.Body()))
	require.True(t, a.Redelivered)

	// new message continues sequence after reloaded ones
	item, err := reloaded.Enqueue("durable", durableMsg("c"))
	require.NoError(t, err)
	require.True(t, item.Seq > a.Seq)
}

func TestAckRemovesPersisted(t *testing.T) {
	meta, msgs := newStores(t)

	m := NewManager(meta, msgs)

	_, _, err := m.Declare("durable", true, false, false, nil, "")
	require.NoError(t, err)

	item, err := m.Enqueue("durable", durableMsg("a"))
	require.NoError(t, err)
	require.True(t, item.Persisted)

	require.NoError(t, m.Ack("durable", item))

	reloaded := NewManager(meta, msgs)
	require.NoError(t, reloaded.Load())

	q, err := reloaded.Select("durable")
	require.NoError(t, err)
	require.Equal(t, 0, q.Len())
}

func TestDeleteWipesMessages(t *testing.T) {
	meta, msgs := newStores(t)

	m := NewManager(meta, msgs)

	_, _, err := m.Declare("durable", true, false, false, nil, "")
	require.NoError(t, err)
	_, _, err = m.Declare("other", true, false, false, nil, "")
	require.NoError(t, err)

	_, err = m.Enqueue("durable", durableMsg("a"))
	require.NoError(t, err)
	_, err = m.Enqueue("other", durableMsg("b"))
	require.NoError(t, err)

	require.NoError(t, m.Delete("durable"))

	var count int
	require.NoError(t, msgs.ForEach(func(k, v []byte) error {
		count++
		return nil
	}))
	require.Equal(t, 1, count)
}

func TestDeleteKeepsMessagesOfPrefixedQueue(t *testing.T) {
	meta, msgs := newStores(t)

	m := NewManager(meta, msgs)

	for _, name := range []string{"a", "a/b", "a/"} {
		_, _, err := m.Declare(name, true, false, false, nil, "")
		require.NoError(t, err)

		_, err = m.Enqueue(name, durableMsg(name))
		require.NoError(t, err)
	}

	require.NoError(t, m.Delete("a"))

	reloaded := NewManager(meta, msgs)
	require.NoError(t, reloaded.Load())

	for _, name := range []string{"a/b", "a/"} {
		q, err := reloaded.Select(name)
		require.NoError(t, err)
		require.Equal(t, 1, q.Len(), name)

		item, _ := q.Pop()
		require.Equal(t, name, string(item.Msg.Body()))
	}
}

func TestDeclareRejectsNUL(t *testing.T) {
	m := NewManager(nil, nil)

	_, _, err := m.Declare("a\x00b", false, false, false, nil, "")
	require.Equal(t, types.CodeSyntaxError, types.CodeOf(err))
}

func TestReloadEscapedArgs(t *testing.T) {
	meta, msgs := newStores(t)

	args := types.Args{"x-url": "a=1&b=2"}

	m := NewManager(meta, msgs)
	_, _, err := m.Declare("durable", true, false, false, args, "")
	require.NoError(t, err)

	reloaded := NewManager(meta, msgs)
	require.NoError(t, reloaded.Load())

	q, err := reloaded.Select("durable")
	require.NoError(t, err)
	require.Equal(t, args, q.Args())
}
