package kv

import (
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

const keyPrefix = "ui:"

// Badger is a Backend on an embedded Badger database.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database in dir.
func OpenBadger(dir string) (*Badger, error) {
	path, err := expandPath(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	opts := badger.DefaultOptions(filepath.Join(path, "state"))
	opts.Logger = nil
	opts = opts.WithValueLogFileSize(1 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func dbKey(key string) []byte {
	return []byte(keyPrefix + key)
}

func (b *Badger) Get(key string) (string, error) {
	var out string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			out = string(v)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (b *Badger) Set(key, value string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dbKey(key), []byte(value))
	})
}

func (b *Badger) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dbKey(key))
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}
