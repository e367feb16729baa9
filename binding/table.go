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

// Package binding keeps exchange to queue bindings and routes messages over them.
package binding

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/exchange"
	"github.com/VolantMQ/rabbitlite/persistence/types"
	"github.com/VolantMQ/rabbitlite/topics"
	"github.com/VolantMQ/rabbitlite/types"
)

// Binding links exchange to queue via key
type Binding struct {
	Exchange string
	Queue    string
	Key      string
}

func (b Binding) record() persistenceTypes.BindingRecord {
	return persistenceTypes.BindingRecord{
		Exchange:   b.Exchange,
		Queue:      b.Queue,
		BindingKey: b.Key,
	}
}

// entry bindings of one exchange indexed for every routing algorithm
type entry struct {
	all     map[Binding]bool
	queues  map[string]int
	direct  map[string]map[string]int
	pattern *topics.Trie
}

func newEntry() *entry {
	return &entry{
		all:     make(map[Binding]bool),
		queues:  make(map[string]int),
		direct:  make(map[string]map[string]int),
		pattern: topics.NewTrie(),
	}
}

func (e *entry) add(b Binding, durable bool) {
	e.all[b] = durable
	e.queues[b.Queue]++

	keys, ok := e.direct[b.Key]
	if !ok {
		keys = make(map[string]int)
		e.direct[b.Key] = keys
	}
	keys[b.Queue]++

	e.pattern.Insert(b.Key, b.Queue)
}

func (e *entry) remove(b Binding) {
	delete(e.all, b)

	if e.queues[b.Queue]--; e.queues[b.Queue] <= 0 {
		delete(e.queues, b.Queue)
	}

	if keys, ok := e.direct[b.Key]; ok {
		if keys[b.Queue]--; keys[b.Queue] <= 0 {
			delete(keys, b.Queue)
		}

		if len(keys) == 0 {
			delete(e.direct, b.Key)
		}
	}

	e.pattern.Remove(b.Key, b.Queue)
}

// Table of bindings within virtual host
type Table struct {
	lock      sync.RWMutex
	exchanges map[string]*entry
	store     persistenceTypes.Bucket
}

// NewTable allocate binding table, store may be nil
func NewTable(store persistenceTypes.Bucket) *Table {
	return &Table{
		exchanges: make(map[string]*entry),
		store:     store,
	}
}

// Load persisted bindings
// exists reports whether both ends of binding are present, bindings referencing missing entity are dropped from store
func (t *Table) Load(exists func(Binding) bool) error {
	if t.store == nil {
		return nil
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	return t.store.ForEach(func(k, v []byte) error {
		rec := persistenceTypes.BindingRecord{}
		if err := persistenceTypes.Decode(v, &rec); err != nil {
			// key carries every field of the record
			var e error
			if rec, e = persistenceTypes.ParseBindingKey(k); e != nil {
				return errors.Wrapf(err, "binding %q", string(k))
			}
		}

		b := Binding{Exchange: rec.Exchange, Queue: rec.Queue, Key: rec.BindingKey}

		if !exists(b) {
			return t.store.Delete(k)
		}

		t.entry(b.Exchange).add(b, true)

		return nil
	})
}

func (t *Table) entry(name string) *entry {
	e, ok := t.exchanges[name]
	if !ok {
		e = newEntry()
		t.exchanges[name] = e
	}

	return e
}

// Bind adds binding, durable bindings are persisted first
// Returns false if binding already exists
func (t *Table) Bind(b Binding, durable bool) (bool, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if e, ok := t.exchanges[b.Exchange]; ok {
		if _, ok = e.all[b]; ok {
			return false, nil
		}
	}

	if durable && t.store != nil {
		rec := b.record()

		data, err := persistenceTypes.Encode(rec)
		if err != nil {
			return false, types.Persistence(err)
		}

		if err = t.store.Put(rec.Key(), data); err != nil {
			return false, types.Persistence(err)
		}
	}

	t.entry(b.Exchange).add(b, durable)

	return true, nil
}

// Unbind removes binding
// Returns number of bindings left on exchange
func (t *Table) Unbind(b Binding) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	e, ok := t.exchanges[b.Exchange]
	if !ok {
		return 0, errors.Wrapf(types.CodeNotFound, "binding %s -> %s (%q)", b.Exchange, b.Queue, b.Key)
	}

	durable, ok := e.all[b]
	if !ok {
		return len(e.all), errors.Wrapf(types.CodeNotFound, "binding %s -> %s (%q)", b.Exchange, b.Queue, b.Key)
	}

	if err := t.unpersist(b, durable); err != nil {
		return len(e.all), err
	}

	e.remove(b)

	left := len(e.all)
	if left == 0 {
		delete(t.exchanges, b.Exchange)
	}

	return left, nil
}

func (t *Table) unpersist(b Binding, durable bool) error {
	if !durable || t.store == nil {
		return nil
	}

	rec := b.record()
	if err := t.store.Delete(rec.Key()); err != nil {
		return types.Persistence(err)
	}

	return nil
}

// RemoveExchange drops every binding of exchange
func (t *Table) RemoveExchange(name string) ([]Binding, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	e, ok := t.exchanges[name]
	if !ok {
		return nil, nil
	}

	var removed []Binding

	for b, durable := range e.all {
		if err := t.unpersist(b, durable); err != nil {
			return removed, err
		}

		removed = append(removed, b)
	}

	delete(t.exchanges, name)

	sortBindings(removed)

	return removed, nil
}

// RemoveQueue drops every binding pointing to queue
// Returns removed bindings, caller checks auto-delete exchanges
func (t *Table) RemoveQueue(name string) ([]Binding, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	var removed []Binding

	for ex, e := range t.exchanges {
		if _, ok := e.queues[name]; !ok {
			continue
		}

		for b, durable := range e.all {
			if b.Queue != name {
				continue
			}

			if err := t.unpersist(b, durable); err != nil {
				return removed, err
			}

			e.remove(b)
			removed = append(removed, b)
		}

		if len(e.all) == 0 {
			delete(t.exchanges, ex)
		}
	}

	sortBindings(removed)

	return removed, nil
}

// Count bindings of exchange
func (t *Table) Count(exchange string) int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if e, ok := t.exchanges[exchange]; ok {
		return len(e.all)
	}

	return 0
}

// Exists ...
func (t *Table) Exists(b Binding) bool {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if e, ok := t.exchanges[b.Exchange]; ok {
		_, ok = e.all[b]
		return ok
	}

	return false
}

// List bindings of exchange sorted by queue and key
func (t *Table) List(exchange string) []Binding {
	t.lock.RLock()
	defer t.lock.RUnlock()

	e, ok := t.exchanges[exchange]
	if !ok {
		return nil
	}

	res := make([]Binding, 0, len(e.all))
	for b := range e.all {
		res = append(res, b)
	}

	sortBindings(res)

	return res
}

// Route returns names of queues message with routing key must be delivered to
// Result is sorted and holds each queue once
func (t *Table) Route(ex *exchange.Exchange, key string) []string {
	t.lock.RLock()
	defer t.lock.RUnlock()

	e, ok := t.exchanges[ex.Name]
	if !ok {
		return nil
	}

	var res []string

	switch ex.Type {
	case exchange.Fanout:
		for q := range e.queues {
			res = append(res, q)
		}
	case exchange.Direct:
		for q := range e.direct[key] {
			res = append(res, q)
		}
	case exchange.Topic:
		for q := range e.pattern.Search(key) {
			res = append(res, q)
		}
	}

	sort.Strings(res)

	return res
}

func sortBindings(b []Binding) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].Exchange != b[j].Exchange {
			return b[i].Exchange < b[j].Exchange
		}

		if b[i].Queue != b[j].Queue {
			return b[i].Queue < b[j].Queue
		}

		return b[i].Key < b[j].Key
	})
}
