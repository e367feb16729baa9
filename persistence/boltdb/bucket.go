package boltdb

import (
	"sync"

	"github.com/boltdb/bolt"

	"github.com/VolantMQ/rabbitlite/persistence/types"
)

type bucket struct {
	name []byte
	db   *dbStatus

	// transactions that are in progress right now
	wgTx *sync.WaitGroup
	lock *sync.Mutex
}

var _ persistenceTypes.Bucket = (*bucket)(nil)

// begin registers transaction so Shutdown waits for it
func (b *bucket) begin() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	select {
	case <-b.db.done:
		return persistenceTypes.ErrNotOpen
	default:
	}

	b.wgTx.Add(1)

	return nil
}

func (b *bucket) Get(key []byte) ([]byte, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	defer b.wgTx.Done()

	var value []byte

	err := b.db.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.name).Get(key)
		if v == nil {
			return persistenceTypes.ErrNotFound
		}

		// bolt value is valid only within transaction
		value = append([]byte(nil), v...)

		return nil
	})

	return value, err
}

func (b *bucket) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return persistenceTypes.ErrInvalidArgs
	}

	if err := b.begin(); err != nil {
		return err
	}
	defer b.wgTx.Done()

	return b.db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).Put(key, value)
	})
}

func (b *bucket) Delete(key []byte) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.wgTx.Done()

	return b.db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).Delete(key)
	})
}

func (b *bucket) ForEach(fn func([]byte, []byte) error) error {
	if err := b.begin(); err != nil {
		return err
	}

	var entries []persistenceTypes.Entry

	err := b.db.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).ForEach(func(k, v []byte) error {
			entries = append(entries, persistenceTypes.Entry{
				Key:   append([]byte(nil), k...),
				Value: append([]byte(nil), v...),
			})
			return nil
		})
	})

	b.wgTx.Done()

	if err != nil {
		return err
	}

	return persistenceTypes.Iterate(entries, fn)
}

// Wipe
func (b *bucket) Wipe() error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.wgTx.Done()

	return b.db.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(b.name); err != nil {
			return err
		}

		if _, err := tx.CreateBucket(b.name); err != nil {
			return err
		}
		return nil
	})
}
