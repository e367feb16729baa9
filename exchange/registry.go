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

package exchange

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/persistence/types"
	"github.com/VolantMQ/rabbitlite/types"
)

// Registry of exchanges within virtual host
// Durable exchanges are written to store before they become visible
type Registry struct {
	lock      sync.RWMutex
	exchanges map[string]*Exchange
	store     persistenceTypes.Bucket
}

// NewRegistry allocate registry, store may be nil for transient only host
func NewRegistry(store persistenceTypes.Bucket) *Registry {
	return &Registry{
		exchanges: make(map[string]*Exchange),
		store:     store,
	}
}

// Load durable exchanges from store
func (r *Registry) Load() error {
	if r.store == nil {
		return nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	return r.store.ForEach(func(k, v []byte) error {
		rec := persistenceTypes.ExchangeRecord{}
		if err := persistenceTypes.Decode(v, &rec); err != nil {
			return errors.Wrapf(err, "exchange %q", string(k))
		}

		e, err := FromRecord(&rec)
		if err != nil {
			return err
		}

		r.exchanges[e.Name] = e

		return nil
	})
}

// Declare exchange
// Redeclare with same type and flags returns existing exchange, otherwise fails with precondition error
func (r *Registry) Declare(name string, t Type, durable, autoDelete bool, args types.Args) (*Exchange, bool, error) {
	if name == "" {
		return nil, false, errors.Wrap(types.CodeSyntaxError, "exchange name is empty")
	}

	if strings.ContainsRune(name, 0) {
		return nil, false, errors.Wrapf(types.CodeSyntaxError, "exchange name %q contains NUL", name)
	}

	if _, ok := typeNames[t]; !ok {
		return nil, false, errors.Wrapf(types.CodeCommandInvalid, "exchange %q: type %d", name, t)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if e, ok := r.exchanges[name]; ok {
		if e.Type != t || e.Durable != durable || e.AutoDelete != autoDelete {
			return nil, false, errors.Wrapf(types.CodePreconditionFailed,
				"exchange %q declared as %s durable=%t auto_delete=%t", name, e.Type, e.Durable, e.AutoDelete)
		}

		return e, false, nil
	}

	e := &Exchange{
		Name:       name,
		Type:       t,
		Durable:    durable,
		AutoDelete: autoDelete,
		Args:       args.Copy(),
	}

	if durable && r.store != nil {
		data, err := persistenceTypes.Encode(e.Record())
		if err != nil {
			return nil, false, types.Persistence(err)
		}

		if err = r.store.Put([]byte(name), data); err != nil {
			return nil, false, types.Persistence(err)
		}
	}

	r.exchanges[name] = e

	return e, true, nil
}

// Delete exchange and its persisted record
func (r *Registry) Delete(name string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.exchanges[name]
	if !ok {
		return errors.Wrapf(types.CodeNotFound, "exchange %q", name)
	}

	if e.Durable && r.store != nil {
		if err := r.store.Delete([]byte(name)); err != nil {
			return types.Persistence(err)
		}
	}

	delete(r.exchanges, name)

	return nil
}

// Select exchange by name
func (r *Registry) Select(name string) (*Exchange, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	e, ok := r.exchanges[name]
	if !ok {
		return nil, errors.Wrapf(types.CodeNotFound, "exchange %q", name)
	}

	return e, nil
}

// Exists ...
func (r *Registry) Exists(name string) bool {
	r.lock.RLock()
	_, ok := r.exchanges[name]
	r.lock.RUnlock()

	return ok
}

// Size number of exchanges
func (r *Registry) Size() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.exchanges)
}

// List exchanges sorted by name
func (r *Registry) List() []*Exchange {
	r.lock.RLock()
	res := make([]*Exchange, 0, len(r.exchanges))
	for _, e := range r.exchanges {
		res = append(res, e)
	}
	r.lock.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})

	return res
}
