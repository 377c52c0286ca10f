package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

const sessionFileName = "session.json"

// FileKV keeps all keys in a single JSON object on disk.
//
// Every write rewrites the file through a temp file + rename. The mutex only serializes writers
// inside one process; concurrent processes get last-writer-wins.
type FileKV struct {
	path string
	mu   sync.Mutex
}

func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

func (f *FileKV) Path() string { return f.path }

func (f *FileKV) load() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	vals := map[string]string{}
	if len(b) == 0 {
		return vals, nil
	}
	if err := json.Unmarshal(b, &vals); err != nil {
		return nil, err
	}
	return vals, nil
}

func (f *FileKV) save(vals map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(vals, "", "  ")
	if err != nil {
		return err
	}
	// Session data includes a bearer token: keep it user-readable only.
	return atomicWriteFile(dir, sessionFileName+".*.tmp", f.path, b, 0o600)
}

func (f *FileKV) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := vals[key]
	return v, ok, nil
}

func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, err := f.load()
	if err != nil {
		// A corrupted file must not block a fresh login.
		vals = map[string]string{}
	}
	vals[key] = value
	return f.save(vals)
}

func (f *FileKV) Remove(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, err := f.load()
	if err != nil {
		vals = map[string]string{}
	}
	changed := err != nil
	for _, k := range keys {
		if _, ok := vals[k]; ok {
			delete(vals, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save(vals)
}
