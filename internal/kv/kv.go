package kv

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get for keys that were never set or were
// deleted.
var ErrNotFound = errors.New("key not found")

// Backend is a string key-value store for UI state that must survive
// restarts.
type Backend interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Kind selects a Backend implementation.
type Kind string

const (
	KindBadger Kind = "badger"
	KindFile   Kind = "file"
	KindMemory Kind = "memory"
)

// ParseKind normalizes a storage name from configuration.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindBadger, nil
	case KindBadger, KindFile, KindMemory:
		return k, nil
	default:
		return "", fmt.Errorf("unknown storage %q (want badger, file or memory)", s)
	}
}

// Open creates the backend of the given kind rooted at dir.
func Open(kind Kind, dir string) (Backend, error) {
	switch kind {
	case KindBadger, "":
		return OpenBadger(dir)
	case KindFile:
		return OpenFile(dir)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", kind)
	}
}
