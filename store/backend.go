package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gridappend/errs"
)

// Backend is one physical home for a store: a flat namespace mapping object
// keys (".zmetadata", "temp/.zarray", "temp/0.0.1", ...) to byte payloads.
//
// Get reports absent keys with an error satisfying
// errors.Is(err, fs.ErrNotExist); the reader relies on that to materialize
// suppressed chunks as fill.
type Backend interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// isSQLiteLocator reports whether a locator names a single-file SQLite store
// rather than a directory tree.
func isSQLiteLocator(locator string) bool {
	switch strings.ToLower(filepath.Ext(locator)) {
	case ".sqlite", ".db":
		return true
	default:
		return false
	}
}

// Exists reports whether anything occupies the destination locator.
func Exists(locator string) (bool, error) {
	_, err := os.Stat(locator)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// openBackend opens an existing store read-side. A locator with nothing
// behind it reports ErrStoreMissing so callers can treat a first run as "no
// prior dataset".
func openBackend(locator string) (Backend, error) {
	ok, err := Exists(locator)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrStoreMissing, locator)
	}

	if isSQLiteLocator(locator) {
		return openSQLiteBackend(locator)
	}

	return &dirBackend{root: locator}, nil
}

// stageBackend creates a write-side backend rooted at a temporary sibling of
// the final locator. The returned path is what commitStage renames into
// place; discardStage removes it on failure.
func stageBackend(locator string) (Backend, string, error) {
	parent := filepath.Dir(locator)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, "", fmt.Errorf("create store parent: %w", err)
	}

	if isSQLiteLocator(locator) {
		f, err := os.CreateTemp(parent, "."+filepath.Base(locator)+".tmp-*")
		if err != nil {
			return nil, "", fmt.Errorf("stage store: %w", err)
		}
		path := f.Name()
		if err := f.Close(); err != nil {
			return nil, "", err
		}
		// The backend re-creates the file as a fresh database.
		if err := os.Remove(path); err != nil {
			return nil, "", err
		}
		b, err := createSQLiteBackend(path)
		if err != nil {
			return nil, "", err
		}

		return b, path, nil
	}

	path, err := os.MkdirTemp(parent, "."+filepath.Base(locator)+".tmp-*")
	if err != nil {
		return nil, "", fmt.Errorf("stage store: %w", err)
	}

	return &dirBackend{root: path}, path, nil
}

// commitStage moves a fully built staging root onto the final locator.
// Exclusive mode re-checks the destination right before the rename; the
// check-then-rename window is accepted because runs targeting one
// destination are serialized by the invoking layer.
func commitStage(staged, locator string, mode CreateMode) error {
	if mode == CreateExclusive {
		ok, err := Exists(locator)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", errs.ErrStoreExists, locator)
		}
	} else if err := os.RemoveAll(locator); err != nil {
		return fmt.Errorf("replace existing store: %w", err)
	}

	if err := os.Rename(staged, locator); err != nil {
		return fmt.Errorf("commit store: %w", err)
	}

	return nil
}

func discardStage(staged string) {
	_ = os.RemoveAll(staged)
}

// dirBackend lays the namespace out as files under a root directory, the
// store's native on-disk form.
type dirBackend struct {
	root string
}

var _ Backend = (*dirBackend)(nil)

func (b *dirBackend) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(b.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func (b *dirBackend) Get(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(b.root, filepath.FromSlash(key)))
}

func (b *dirBackend) Close() error {
	return nil
}
