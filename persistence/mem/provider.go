package mem

import (
	"bytes"
	"sort"
	"sync"

	"github.com/VolantMQ/rabbitlite/persistence/types"
)

type dbStatus struct {
	done chan struct{}
}

type impl struct {
	db      dbStatus
	lock    sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	db   *dbStatus
	lock sync.RWMutex
	data map[string][]byte
}

var _ persistenceTypes.Provider = (*impl)(nil)
var _ persistenceTypes.Bucket = (*bucket)(nil)

// New allocate new persistence provider of in memory type
func New(config *persistenceTypes.MemConfig) (persistenceTypes.Provider, error) {
	pl := &impl{
		db: dbStatus{
			done: make(chan struct{}),
		},
		buckets: make(map[string]*bucket),
	}

	for _, kind := range persistenceTypes.Kinds {
		pl.buckets[kind] = &bucket{
			db:   &pl.db,
			data: make(map[string][]byte),
		}
	}

	return pl, nil
}

// Bucket
func (p *impl) Bucket(kind string) (persistenceTypes.Bucket, error) {
	select {
	case <-p.db.done:
		return nil, persistenceTypes.ErrNotOpen
	default:
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	b, ok := p.buckets[kind]
	if !ok {
		return nil, persistenceTypes.ErrUnknownKind
	}

	return b, nil
}

// Shutdown provider
func (p *impl) Shutdown() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	select {
	case <-p.db.done:
		return persistenceTypes.ErrNotOpen
	default:
	}

	close(p.db.done)

	return nil
}

func (b *bucket) closed() bool {
	select {
	case <-b.db.done:
		return true
	default:
		return false
	}
}

func (b *bucket) Get(key []byte) ([]byte, error) {
	if b.closed() {
		return nil, persistenceTypes.ErrNotOpen
	}

	b.lock.RLock()
	defer b.lock.RUnlock()

	v, ok := b.data[string(key)]
	if !ok {
		return nil, persistenceTypes.ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

func (b *bucket) Put(key []byte, value []byte) error {
	if b.closed() {
		return persistenceTypes.ErrNotOpen
	}

	if len(key) == 0 {
		return persistenceTypes.ErrInvalidArgs
	}

	b.lock.Lock()
	b.data[string(key)] = append([]byte(nil), value...)
	b.lock.Unlock()

	return nil
}

func (b *bucket) Delete(key []byte) error {
	if b.closed() {
		return persistenceTypes.ErrNotOpen
	}

	b.lock.Lock()
	delete(b.data, string(key))
	b.lock.Unlock()

	return nil
}

func (b *bucket) ForEach(fn func([]byte, []byte) error) error {
	if b.closed() {
		return persistenceTypes.ErrNotOpen
	}

	b.lock.RLock()
	entries := make([]persistenceTypes.Entry, 0, len(b.data))
	for k, v := range b.data {
		entries = append(entries, persistenceTypes.Entry{Key: []byte(k), Value: append([]byte(nil), v...)})
	}
	b.lock.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})

	return persistenceTypes.Iterate(entries, fn)
}

func (b *bucket) Wipe() error {
	if b.closed() {
		return persistenceTypes.ErrNotOpen
	}

	b.lock.Lock()
	b.data = make(map[string][]byte)
	b.lock.Unlock()

	return nil
}
