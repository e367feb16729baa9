package persistenceTypes

// Errors reported by persistence backends
type Errors int

// nolint: golint
const (
	// ErrInvalidArgs invalid arguments provided
	ErrInvalidArgs Errors = iota
	// ErrUnknownProvider if provider is unknown
	ErrUnknownProvider
	// ErrAlreadyExists object already exists
	ErrAlreadyExists
	ErrNotInitialized
	// ErrNotFound object not found
	ErrNotFound
	// ErrNotOpen storage is not open
	ErrNotOpen
	// ErrUnknownKind bucket kind is not one of known record kinds
	ErrUnknownKind
	// ErrBrokenEntry stored value cannot be decoded
	ErrBrokenEntry
)

var errorsDesc = map[Errors]string{
	ErrInvalidArgs:     "persistence: invalid arguments",
	ErrUnknownProvider: "persistence: unknown provider",
	ErrAlreadyExists:   "persistence: already exists",
	ErrNotInitialized:  "persistence: not initialized",
	ErrNotFound:        "persistence: not found",
	ErrNotOpen:         "persistence: not open",
	ErrUnknownKind:     "persistence: unknown bucket kind",
	ErrBrokenEntry:     "persistence: broken entry",
}

// Errors description during persistence
func (e Errors) Error() string {
	if s, ok := errorsDesc[e]; ok {
		return s
	}

	return "unknown error"
}

// Bucket kinds
const (
	KindExchanges = "exchanges"
	KindQueues    = "queues"
	KindBindings  = "bindings"
	KindMessages  = "messages"
)

// Kinds every provider must be able to open
var Kinds = []string{KindExchanges, KindQueues, KindBindings, KindMessages}

// Bucket is a flat key/value table holding records of one kind
type Bucket interface {
	// Get value by key, ErrNotFound if key does not exist
	Get(key []byte) ([]byte, error)
	// Put insert or replace value
	Put(key []byte, value []byte) error
	// Delete key, deleting missing key is not an error
	Delete(key []byte) error
	// ForEach iterates entries in ascending key order
	// fn is invoked outside of backend transaction thus it may write to any bucket
	ForEach(fn func(key []byte, value []byte) error) error
	// Wipe all entries
	Wipe() error
}

// Provider interface implemented by different backends
type Provider interface {
	Bucket(kind string) (Bucket, error)
	Shutdown() error
}

// ProviderConfig interface implemented by every backend
type ProviderConfig interface{}

// BoltDBConfig configuration of the BoltDB backend
type BoltDBConfig struct {
	File string
}

// BuntDBConfig configuration of the BuntDB backend
type BuntDBConfig struct {
	File string
}

// SQLiteConfig configuration of the SQLite backend
type SQLiteConfig struct {
	File string
}

// FilesConfig configuration of the file per entry backend
type FilesConfig struct {
	Dir string
}

// MemConfig configuration of the in memory backend
type MemConfig struct{}

var _ ProviderConfig = (*BoltDBConfig)(nil)
var _ ProviderConfig = (*BuntDBConfig)(nil)
var _ ProviderConfig = (*SQLiteConfig)(nil)
var _ ProviderConfig = (*FilesConfig)(nil)
var _ ProviderConfig = (*MemConfig)(nil)

// Entry is a copied key/value pair
type Entry struct {
	Key   []byte
	Value []byte
}

// Iterate calls fn for every entry stopping on first error
func Iterate(entries []Entry, fn func([]byte, []byte) error) error {
	for _, e := range entries {
		if err := fn(e.Key, e.Value); err != nil {
			return err
		}
	}

	return nil
}
