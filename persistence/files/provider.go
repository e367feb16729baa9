// Package files keeps every entry in its own file.
// It backs the per virtual host message store where entries are written once and removed on ack.
package files

import (
	"encoding/base32"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/VolantMQ/rabbitlite/persistence/types"
)

const tmpSuffix = ".tmp"

// file names stay valid on case-insensitive filesystems
var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type impl struct {
	dir  string
	done chan struct{}
	lock sync.RWMutex

	buckets map[string]*bucket
}

type bucket struct {
	dir string
	p   *impl
}

var _ persistenceTypes.Provider = (*impl)(nil)
var _ persistenceTypes.Bucket = (*bucket)(nil)

// New allocate provider rooted at config.Dir, every kind is a subdirectory
func New(config *persistenceTypes.FilesConfig) (persistenceTypes.Provider, error) {
	if config == nil || config.Dir == "" {
		return nil, persistenceTypes.ErrInvalidArgs
	}

	pl := &impl{
		dir:     config.Dir,
		done:    make(chan struct{}),
		buckets: make(map[string]*bucket),
	}

	if err := os.MkdirAll(config.Dir, 0700); err != nil {
		return nil, err
	}

	for _, kind := range persistenceTypes.Kinds {
		pl.buckets[kind] = &bucket{
			dir: filepath.Join(config.Dir, kind),
			p:   pl,
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

	// directory of kind is created on first use
	if err := os.MkdirAll(b.dir, 0700); err != nil {
		return nil, err
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

	return nil
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

func (b *bucket) path(key []byte) string {
	return filepath.Join(b.dir, encoding.EncodeToString(key))
}

func (b *bucket) Get(key []byte) ([]byte, error) {
	if err := b.acquire(); err != nil {
		return nil, err
	}
	defer b.release()

	data, err := os.ReadFile(b.path(key))
	if os.IsNotExist(err) {
		return nil, persistenceTypes.ErrNotFound
	}

	return data, err
}

// Put writes temporary file and renames it so readers never observe partial entry
func (b *bucket) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return persistenceTypes.ErrInvalidArgs
	}

	if err := b.acquire(); err != nil {
		return err
	}
	defer b.release()

	name := b.path(key)
	tmp := name + tmpSuffix

	if err := os.WriteFile(tmp, value, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp) // nolint: errcheck
		return err
	}

	return nil
}

func (b *bucket) Delete(key []byte) error {
	if err := b.acquire(); err != nil {
		return err
	}
	defer b.release()

	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (b *bucket) list() ([]persistenceTypes.Entry, error) {
	infos, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}

	var entries []persistenceTypes.Entry

	for _, info := range infos {
		if info.IsDir() || strings.HasSuffix(info.Name(), tmpSuffix) {
			continue
		}

		key, err := encoding.DecodeString(info.Name())
		if err != nil {
			// foreign file
			continue
		}

		entries = append(entries, persistenceTypes.Entry{Key: key})
	}

	sort.Slice(entries, func(i, j int) bool {
		return string(entries[i].Key) < string(entries[j].Key)
	})

	return entries, nil
}

func (b *bucket) ForEach(fn func([]byte, []byte) error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	entries, err := b.list()
	if err == nil {
		for i := range entries {
			var data []byte
			if data, err = os.ReadFile(b.path(entries[i].Key)); err != nil {
				if os.IsNotExist(err) {
					// removed concurrently
					err = nil
					continue
				}
				break
			}

			entries[i].Value = data
		}
	}

	b.release()

	if err != nil {
		return err
	}

	return persistenceTypes.Iterate(entries, func(k, v []byte) error {
		if v == nil {
			return nil
		}
		return fn(k, v)
	})
}

func (b *bucket) Wipe() error {
	if err := b.acquire(); err != nil {
		return err
	}
	defer b.release()

	entries, err := b.list()
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err = os.Remove(b.path(e.Key)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}
