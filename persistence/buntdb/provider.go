package buntdb

import (
	"strings"
	"sync"

	"github.com/tidwall/buntdb"

	"github.com/VolantMQ/rabbitlite/persistence/types"
)

type impl struct {
	db   *buntdb.DB
	done chan struct{}
	lock sync.RWMutex

	buckets map[string]*bucket
}

type bucket struct {
	prefix string
	p      *impl
}

var _ persistenceTypes.Provider = (*impl)(nil)
var _ persistenceTypes.Bucket = (*bucket)(nil)

// New allocate new persistence provider of BuntDB type
// Empty file or ":memory:" opens in-memory database
func New(config *persistenceTypes.BuntDBConfig) (persistenceTypes.Provider, error) {
	if config == nil {
		return nil, persistenceTypes.ErrInvalidArgs
	}

	path := config.File
	if path == "" {
		path = ":memory:"
	}

	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}

	pl := &impl{
		db:      db,
		done:    make(chan struct{}),
		buckets: make(map[string]*bucket),
	}

	for _, kind := range persistenceTypes.Kinds {
		pl.buckets[kind] = &bucket{
			prefix: kind + ":",
			p:      pl,
		}
	}

	return pl, nil
}

// Bucket
func (p *impl) Bucket(kind string) (persistenceTypes.Bucket, error) {
	select {
	case <-p.done:
		return nil, persistenceTypes.ErrNotOpen
	default:
	}

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
	case <-p.done:
		return persistenceTypes.ErrNotOpen
	default:
	}

	close(p.done)

	return p.db.Close()
}

// acquire holds provider open during operation
func (b *bucket) acquire() error {
	b.p.lock.RLock()

	select {
	case <-b.p.done:
		b.p.lock.RUnlock()
		return persistenceTypes.ErrNotOpen
	default:
	}

	return nil
}

func (b *bucket) release() {
	b.p.lock.RUnlock()
}

func (b *bucket) Get(key []byte) ([]byte, error) {
	if err := b.acquire(); err != nil {
		return nil, err
	}
	defer b.release()

	var value string
	err := b.p.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(b.prefix + string(key))
		if err != nil {
			return err
		}
		value = val
		return nil
	})

	if err == buntdb.ErrNotFound {
		return nil, persistenceTypes.ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return []byte(value), nil
}

func (b *bucket) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return persistenceTypes.ErrInvalidArgs
	}

	if err := b.acquire(); err != nil {
		return err
	}
	defer b.release()

	return b.p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(b.prefix+string(key), string(value), nil)
		return err
	})
}

func (b *bucket) Delete(key []byte) error {
	if err := b.acquire(); err != nil {
		return err
	}
	defer b.release()

	return b.p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(b.prefix + string(key))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

// scan collects entries of bucket in key order
func (b *bucket) scan(tx *buntdb.Tx) ([]persistenceTypes.Entry, error) {
	var entries []persistenceTypes.Entry

	err := tx.AscendGreaterOrEqual("", b.prefix, func(key, value string) bool {
		if !strings.HasPrefix(key, b.prefix) {
			return false
		}

		entries = append(entries, persistenceTypes.Entry{
			Key:   []byte(strings.TrimPrefix(key, b.prefix)),
			Value: []byte(value),
		})

		return true
	})

	return entries, err
}

func (b *bucket) ForEach(fn func([]byte, []byte) error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	var entries []persistenceTypes.Entry

	err := b.p.db.View(func(tx *buntdb.Tx) error {
		var e error
		entries, e = b.scan(tx)
		return e
	})

	b.release()

	if err != nil {
		return err
	}

	return persistenceTypes.Iterate(entries, fn)
}

func (b *bucket) Wipe() error {
	if err := b.acquire(); err != nil {
		return err
	}
	defer b.release()

	return b.p.db.Update(func(tx *buntdb.Tx) error {
		entries, err := b.scan(tx)
		if err != nil {
			return err
		}

		for _, e := range entries {
			if _, err = tx.Delete(b.prefix + string(e.Key)); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}

		return nil
	})
}
