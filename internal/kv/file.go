package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultDataDir = "~/.local/share/clanboard"
	stateFileName  = "state.toml"
)

// File is a Backend that keeps all values in one TOML table on disk. Every
// Set rewrites the file.
type File struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// OpenFile loads dir/state.toml. A missing or unreadable file starts empty.
func OpenFile(dir string) (*File, error) {
	resolved, err := expandPath(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	f := &File{path: filepath.Join(resolved, stateFileName), values: make(map[string]string)}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return f, nil // Graceful degradation
	}
	if err := toml.Unmarshal(data, &f.values); err != nil {
		f.values = make(map[string]string) // Graceful degradation
	}
	return f, nil
}

// Path returns the file backing the store.
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.flush()
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.flush()
}

func (f *File) Close() error { return nil }

func (f *File) flush() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	bytes, err := toml.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// expandPath resolves ~ and makes path absolute. Empty means the default
// data directory.
func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = defaultDataDir
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
