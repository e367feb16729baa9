package boltdb

import (
	"sync"

	"github.com/boltdb/bolt"

	"github.com/VolantMQ/rabbitlite/persistence/types"
)

type dbStatus struct {
	db   *bolt.DB
	done chan struct{}
}

type impl struct {
	db dbStatus

	// transactions that are in progress right now
	wgTx sync.WaitGroup
	lock sync.Mutex

	buckets map[string]*bucket
}

var _ persistenceTypes.Provider = (*impl)(nil)

// New allocate new persistence provider of boltDB type
func New(config *persistenceTypes.BoltDBConfig) (p persistenceTypes.Provider, err error) {
	if config == nil || config.File == "" {
		return nil, persistenceTypes.ErrInvalidArgs
	}

	pl := &impl{
		db: dbStatus{
			done: make(chan struct{}),
		},
		buckets: make(map[string]*bucket),
	}

	if pl.db.db, err = bolt.Open(config.File, 0600, nil); err != nil {
		return nil, err
	}

	err = pl.db.db.Update(func(tx *bolt.Tx) error {
		for _, kind := range persistenceTypes.Kinds {
			if _, e := tx.CreateBucketIfNotExists([]byte(kind)); e != nil {
				return e
			}
		}

		return nil
	})

	if err != nil {
		pl.db.db.Close() // nolint: errcheck
		return nil, err
	}

	for _, kind := range persistenceTypes.Kinds {
		pl.buckets[kind] = &bucket{
			name: []byte(kind),
			db:   &pl.db,
			wgTx: &pl.wgTx,
			lock: &pl.lock,
		}
	}

	p = pl

	return p, nil
}

// Bucket
func (p *impl) Bucket(kind string) (persistenceTypes.Bucket, error) {
	select {
	case <-p.db.done:
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
	case <-p.db.done:
		return persistenceTypes.ErrNotOpen
	default:
	}

	close(p.db.done)

	p.wgTx.Wait()

	err := p.db.db.Close()
	p.db.db = nil

	return err
}
