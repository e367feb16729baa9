package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VolantMQ/rabbitlite/persistence/types"
)

func openAll(t *testing.T) map[string]persistenceTypes.Provider {
	dir := t.TempDir()

	res := make(map[string]persistenceTypes.Provider)

	for _, backend := range append(Backends, BackendFiles) {
		cfg, err := Config(backend, filepath.Join(dir, backend+".db"), filepath.Join(dir, backend))
		require.NoError(t, err)

		p, err := New(cfg)
		require.NoError(t, err, backend)

		res[backend] = p
	}

	return res
}

func TestUnknownProvider(t *testing.T) {
	_, err := New(struct{}{})
	require.Equal(t, persistenceTypes.ErrUnknownProvider, err)

	_, err = Config("redis", "", "")
	require.Equal(t, persistenceTypes.ErrUnknownProvider, err)
}

func TestBucketOperations(t *testing.T) {
	for name, p := range openAll(t) {
		p := p
		t.Run(name, func(t *testing.T) {
			defer func() {
				require.NoError(t, p.Shutdown())
			}()

			_, err := p.Bucket("unknown")
			require.Equal(t, persistenceTypes.ErrUnknownKind, err)

			b, err := p.Bucket(persistenceTypes.KindQueues)
			require.NoError(t, err)

			_, err = b.Get([]byte("q1"))
			require.Equal(t, persistenceTypes.ErrNotFound, err)

			require.NoError(t, b.Put([]byte("q2"), []byte("v2")))
			require.NoError(t, b.Put([]byte("q1"), []byte("v1")))
			require.NoError(t, b.Put([]byte("q1"), []byte("v1.1")))

			v, err := b.Get([]byte("q1"))
			require.NoError(t, err)
			require.Equal(t, []byte("v1.1"), v)

			var keys []string
			err = b.ForEach(func(k, v []byte) error {
				keys = append(keys, string(k))
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, []string{"q1", "q2"}, keys)

			require.NoError(t, b.Delete([]byte("q1")))
			require.NoError(t, b.Delete([]byte("q1")))

			_, err = b.Get([]byte("q1"))
			require.Equal(t, persistenceTypes.ErrNotFound, err)

			require.NoError(t, b.Wipe())

			keys = nil
			err = b.ForEach(func(k, v []byte) error {
				keys = append(keys, string(k))
				return nil
			})
			require.NoError(t, err)
			require.Empty(t, keys)
		})
	}
}

func TestBucketsAreIsolated(t *testing.T) {
	for name, p := range openAll(t) {
		p := p
		t.Run(name, func(t *testing.T) {
			defer p.Shutdown() // nolint: errcheck

			q, err := p.Bucket(persistenceTypes.KindQueues)
			require.NoError(t, err)
			e, err := p.Bucket(persistenceTypes.KindExchanges)
			require.NoError(t, err)

			require.NoError(t, q.Put([]byte("name"), []byte("queue")))
			require.NoError(t, e.Put([]byte("name"), []byte("exchange")))

			require.NoError(t, q.Wipe())

			v, err := e.Get([]byte("name"))
			require.NoError(t, err)
			require.Equal(t, []byte("exchange"), v)
		})
	}
}

func TestWriteInsideForEach(t *testing.T) {
	for name, p := range openAll(t) {
		p := p
		t.Run(name, func(t *testing.T) {
			defer p.Shutdown() // nolint: errcheck

			b, err := p.Bucket(persistenceTypes.KindMessages)
			require.NoError(t, err)

			require.NoError(t, b.Put([]byte("a"), []byte("1")))
			require.NoError(t, b.Put([]byte("b"), []byte("2")))

			err = b.ForEach(func(k, v []byte) error {
				return b.Delete(k)
			})
			require.NoError(t, err)

			_, err = b.Get([]byte("a"))
			require.Equal(t, persistenceTypes.ErrNotFound, err)
		})
	}
}

func TestShutdown(t *testing.T) {
	for name, p := range openAll(t) {
		p := p
		t.Run(name, func(t *testing.T) {
			b, err := p.Bucket(persistenceTypes.KindBindings)
			require.NoError(t, err)

			require.NoError(t, p.Shutdown())
			require.Equal(t, persistenceTypes.ErrNotOpen, p.Shutdown())

			_, err = p.Bucket(persistenceTypes.KindBindings)
			require.Equal(t, persistenceTypes.ErrNotOpen, err)

			require.Equal(t, persistenceTypes.ErrNotOpen, b.Put([]byte("k"), []byte("v")))
		})
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()

	for _, backend := range []string{BackendBoltDB, BackendBuntDB, BackendSQLite, BackendFiles} {
		t.Run(backend, func(t *testing.T) {
			cfg, err := Config(backend, filepath.Join(dir, backend+".db"), filepath.Join(dir, backend))
			require.NoError(t, err)

			p, err := New(cfg)
			require.NoError(t, err)

			b, err := p.Bucket(persistenceTypes.KindExchanges)
			require.NoError(t, err)
			require.NoError(t, b.Put([]byte("ex"), []byte("fanout")))
			require.NoError(t, p.Shutdown())

			p, err = New(cfg)
			require.NoError(t, err)
			defer p.Shutdown() // nolint: errcheck

			b, err = p.Bucket(persistenceTypes.KindExchanges)
			require.NoError(t, err)

			v, err := b.Get([]byte("ex"))
			require.NoError(t, err)
			require.Equal(t, []byte("fanout"), v)
		})
	}
}
