// Package persistence selects storage backend for broker metadata and durable messages.
package persistence

import (
	"github.com/VolantMQ/rabbitlite/persistence/boltdb"
	"github.com/VolantMQ/rabbitlite/persistence/buntdb"
	"github.com/VolantMQ/rabbitlite/persistence/files"
	"github.com/VolantMQ/rabbitlite/persistence/mem"
	"github.com/VolantMQ/rabbitlite/persistence/sqlite"
	"github.com/VolantMQ/rabbitlite/persistence/types"
)

// Backend names accepted by configuration
const (
	BackendMem    = "mem"
	BackendBoltDB = "boltdb"
	BackendBuntDB = "buntdb"
	BackendSQLite = "sqlite"
	BackendFiles  = "files"
)

// Backends metadata store can be opened with
var Backends = []string{BackendMem, BackendBoltDB, BackendBuntDB, BackendSQLite}

// New open provider of type defined by config
func New(config persistenceTypes.ProviderConfig) (persistenceTypes.Provider, error) {
	switch cfg := config.(type) {
	case *persistenceTypes.MemConfig:
		return mem.New(cfg)
	case *persistenceTypes.BoltDBConfig:
		return boltdb.New(cfg)
	case *persistenceTypes.BuntDBConfig:
		return buntdb.New(cfg)
	case *persistenceTypes.SQLiteConfig:
		return sqlite.New(cfg)
	case *persistenceTypes.FilesConfig:
		return files.New(cfg)
	default:
		return nil, persistenceTypes.ErrUnknownProvider
	}
}

// Config builds provider config for backend name
// File is used by database backends, dir by files backend
func Config(backend string, file string, dir string) (persistenceTypes.ProviderConfig, error) {
	switch backend {
	case BackendMem:
		return &persistenceTypes.MemConfig{}, nil
	case BackendBoltDB:
		return &persistenceTypes.BoltDBConfig{File: file}, nil
	case BackendBuntDB:
		return &persistenceTypes.BuntDBConfig{File: file}, nil
	case BackendSQLite:
		return &persistenceTypes.SQLiteConfig{File: file}, nil
	case BackendFiles:
		return &persistenceTypes.FilesConfig{Dir: dir}, nil
	default:
		return nil, persistenceTypes.ErrUnknownProvider
	}
}
