package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	// register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/VolantMQ/rabbitlite/persistence/types"
)

type impl struct {
	db   *sql.DB
	done chan struct{}
	lock sync.RWMutex

	buckets map[string]*bucket
}

type bucket struct {
	table string
	p     *impl
}

var _ persistenceTypes.Provider = (*impl)(nil)
var _ persistenceTypes.Bucket = (*bucket)(nil)

// New allocate new persistence provider backed by SQLite database
// Every record kind is kept in its own table
func New(config *persistenceTypes.SQLiteConfig) (persistenceTypes.Provider, error) {
	if config == nil || config.File == "" {
		return nil, persistenceTypes.ErrInvalidArgs
	}

	db, err := sql.Open("sqlite3", config.File)
	if err != nil {
		return nil, err
	}

	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	pl := &impl{
		db:      db,
		done:    make(chan struct{}),
		buckets: make(map[string]*bucket),
	}

	for _, kind := range persistenceTypes.Kinds {
		q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (k BLOB PRIMARY KEY, v BLOB NOT NULL)", kind)
		if _, err = db.Exec(q); err != nil {
			db.Close() // nolint: errcheck
			return nil, err
		}

		pl.buckets[kind] = &bucket{
			table: kind,
			p:     pl,
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

	var value []byte

	err := b.p.db.QueryRow("SELECT v FROM "+b.table+" WHERE k = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, persistenceTypes.ErrNotFound
	}

	return value, err
}

func (b *bucket) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return persistenceTypes.ErrInvalidArgs
	}

	if err := b.acquire(); err != nil {
		return err
	}
	defer b.release()

	if value == nil {
		value = []byte{}
	}

	_, err := b.p.db.Exec("INSERT OR REPLACE INTO "+b.table+" (k, v) VALUES (?, ?)", key, value)

	return err
}

func (b *bucket) Delete(key []byte) error {
	if err := b.acquire(); err != nil {
		return err
	}
	defer b.release()

	_, err := b.p.db.Exec("DELETE FROM "+b.table+" WHERE k = ?", key)

	return err
}

func (b *bucket) ForEach(fn func([]byte, []byte) error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	entries, err := b.scan()

	b.release()

	if err != nil {
		return err
	}

	return persistenceTypes.Iterate(entries, fn)
}

func (b *bucket) scan() ([]persistenceTypes.Entry, error) {
	rows, err := b.p.db.Query("SELECT k, v FROM " + b.table + " ORDER BY k")
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint: errcheck

	var entries []persistenceTypes.Entry

	for rows.Next() {
		var e persistenceTypes.Entry
		if err = rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (b *bucket) Wipe() error {
	if err := b.acquire(); err != nil {
		return err
	}
	defer b.release()

	_, err := b.p.db.Exec("DELETE FROM " + b.table)

	return err
}
