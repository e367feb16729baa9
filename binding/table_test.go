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

package binding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/rabbitlite/exchange"
	"github.com/VolantMQ/rabbitlite/persistence/mem"
	"github.com/VolantMQ/rabbitlite/persistence/types"
	"github.com/VolantMQ/rabbitlite/types"
)

func bind(t *testing.T, tbl *Table, ex, q, key string) {
	_, err := tbl.Bind(Binding{Exchange: ex, Queue: q, Key: key}, false)
	require.NoError(t, err)
}

func TestRouteFanout(t *testing.T) {
	tbl := NewTable(nil)
	ex := &exchange.Exchange{Name: "logs", Type: exchange.Fanout}

	bind(t, tbl, "logs", "q1", "a")
	bind(t, tbl, "logs", "q2", "b")
	bind(t, tbl, "logs", "q2", "c")

	require.Equal(t, []string{"q1", "q2"}, tbl.Route(ex, "anything"))
	require.Equal(t, []string{"q1", "q2"}, tbl.Route(ex, ""))
}

func TestRouteDirect(t *testing.T) {
	tbl := NewTable(nil)
	ex := &exchange.Exchange{Name: "direct", Type: exchange.Direct}

	bind(t, tbl, "direct", "q1", "info")
	bind(t, tbl, "direct", "q2", "error")
	bind(t, tbl, "direct", "q3", "info")

	require.Equal(t, []string{"q1", "q3"}, tbl.Route(ex, "info"))
	require.Equal(t, []string{"q2"}, tbl.Route(ex, "error"))
	require.Empty(t, tbl.Route(ex, "info.x"))
	require.Empty(t, tbl.Route(ex, "#"))
}

func TestRouteTopic(t *testing.T) {
	tbl := NewTable(nil)
	ex := &exchange.Exchange{Name: "news", Type: exchange.Topic}

	bind(t, tbl, "news", "Q1", "queue1")
	bind(t, tbl, "news", "Q2", "news.music.#")

	require.Equal(t, []string{"Q2"}, tbl.Route(ex, "news.music.pop"))
	require.Empty(t, tbl.Route(ex, "news.sport"))
	require.Equal(t, []string{"Q1"}, tbl.Route(ex, "queue1"))
}

func TestRouteUnknownExchange(t *testing.T) {
	tbl := NewTable(nil)
	require.Empty(t, tbl.Route(&exchange.Exchange{Name: "none", Type: exchange.Fanout}, "x"))
}

func TestBindIdempotent(t *testing.T) {
	tbl := NewTable(nil)
	b := Binding{Exchange: "ex", Queue: "q", Key: "k"}

	created, err := tbl.Bind(b, false)
	require.NoError(t, err)
	require.True(t, created)

	created, err = tbl.Bind(b, false)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 1, tbl.Count("ex"))
}

func TestUnbind(t *testing.T) {
	tbl := NewTable(nil)
	ex := &exchange.Exchange{Name: "ex", Type: exchange.Direct}

	bind(t, tbl, "ex", "q", "k1")
	bind(t, tbl, "ex", "q", "k2")

	left, err := tbl.Unbind(Binding{Exchange: "ex", Queue: "q", Key: "k1"})
	require.NoError(t, err)
	require.Equal(t, 1, left)
	require.Empty(t, tbl.Route(ex, "k1"))
	require.Equal(t, []string{"q"}, tbl.Route(ex, "k2"))

	_, err = tbl.Unbind(Binding{Exchange: "ex", Queue: "q", Key: "k1"})
	require.Equal(t, types.CodeNotFound, types.CodeOf(err))

	left, err = tbl.Unbind(Binding{Exchange: "ex", Queue: "q", Key: "k2"})
	require.NoError(t, err)
	require.Equal(t, 0, left)

	_, err = tbl.Unbind(Binding{Exchange: "ex", Queue: "q", Key: "k2"})
	require.Equal(t, types.CodeNotFound, types.CodeOf(err))
}

func TestRemoveExchangeAndQueue(t *testing.T) {
	tbl := NewTable(nil)

	bind(t, tbl, "e1", "q1", "a")
	bind(t, tbl, "e1", "q2", "a")
	bind(t, tbl, "e2", "q1", "b")

	removed, err := tbl.RemoveQueue("q1")
	require.NoError(t, err)
	require.Equal(t, []Binding{{"e1", "q1", "a"}, {"e2", "q1", "b"}}, removed)
	require.Equal(t, 1, tbl.Count("e1"))
	require.Equal(t, 0, tbl.Count("e2"))

	removed, err = tbl.RemoveExchange("e1")
	require.NoError(t, err)
	require.Equal(t, []Binding{{"e1", "q2", "a"}}, removed)
	require.Nil(t, tbl.List("e1"))
}

func TestDurableBindingsReload(t *testing.T) {
	p, err := mem.New(&persistenceTypes.MemConfig{})
	require.NoError(t, err)
	store, err := p.Bucket(persistenceTypes.KindBindings)
	require.NoError(t, err)

	tbl := NewTable(store)
	_, err = tbl.Bind(Binding{"ex", "q1", "news.#"}, true)
	require.NoError(t, err)
	_, err = tbl.Bind(Binding{"ex", "q2", "news.#"}, true)
	require.NoError(t, err)
	_, err = tbl.Bind(Binding{"ex", "q3", "news.#"}, false)
	require.NoError(t, err)

	reloaded := NewTable(store)
	require.NoError(t, reloaded.Load(func(b Binding) bool {
		return b.Queue != "q2"
	}))

	require.Equal(t, []Binding{{"ex", "q1", "news.#"}}, reloaded.List("ex"))

	// dangling binding was dropped from store
	again := NewTable(store)
	require.NoError(t, again.Load(func(Binding) bool { return true }))
	require.Equal(t, 1, again.Count("ex"))
}

func TestReloadBrokenRecord(t *testing.T) {
	p, err := mem.New(&persistenceTypes.MemConfig{})
	require.NoError(t, err)
	store, err := p.Bucket(persistenceTypes.KindBindings)
	require.NoError(t, err)

	rec := persistenceTypes.BindingRecord{Exchange: "ex", Queue: "q1", BindingKey: "news.*"}
	require.NoError(t, store.Put(rec.Key(), []byte("{broken")))
	require.NoError(t, store.Put([]byte("garbage"), []byte("{broken")))

	tbl := NewTable(store)
	require.Error(t, tbl.Load(func(Binding) bool { return true }))

	require.NoError(t, store.Delete([]byte("garbage")))

	tbl = NewTable(store)
	require.NoError(t, tbl.Load(func(Binding) bool { return true }))
	require.Equal(t, []Binding{{"ex", "q1", "news.*"}}, tbl.List("ex"))
}
