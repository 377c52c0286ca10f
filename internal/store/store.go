package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Store is the client's local state directory (session storage, TUI state, logs).
type Store struct {
	Dir string
}

func (s Store) Ensure() error {
	if strings.TrimSpace(s.Dir) == "" {
		return errors.New("store dir is empty")
	}
	return os.MkdirAll(s.Dir, 0o700)
}

func (s Store) path(name string) string {
	return filepath.Join(s.Dir, name)
}

// OpenKV opens the durable key-value backend used for the persisted session.
//
// Supported backends:
// - file (default): session.json with atomic replace
// - sqlite: flow.sqlite kv table
func (s Store) OpenKV(backend string) (KV, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "file":
		return NewFileKV(s.path(sessionFileName)), nil
	case "sqlite":
		return OpenSQLiteKV(s.path(sqliteFileName))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}
