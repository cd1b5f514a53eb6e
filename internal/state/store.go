// Package state owns the single game document and its on-disk snapshot.
//
// Every mutation runs inside Update, which holds the document lock for the
// whole read-modify-write and persists the result before returning. Readers
// use View. A mutation that panics is recovered, the document is restored to
// the last persisted snapshot and the caller receives an internal error.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jensholdgaard/trinity/internal/game"
)

// Store guards the game document.
type Store struct {
	mu     sync.RWMutex
	doc    *game.Document
	last   []byte
	path   string
	logger *slog.Logger
}

// Stats describes the persisted document.
type Stats struct {
	Bytes     int
	Players   int
	Upgrades  int
	Missions  int
	LootItems int
	Roles     int
}

// Open loads the document at path. A missing or malformed file is replaced
// by the default document; Open only fails when path is empty.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("state path is required")
	}
	s := &Store{path: path, logger: logger}
	s.Load(ctx)
	return s, nil
}

// Path returns the snapshot location.
func (s *Store) Path() string { return s.path }

// Load replaces the in-memory document with the snapshot on disk, migrating
// it forward. On any read or decode failure the default document is installed
// and written out.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, migrated, err := readDocument(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.ErrorContext(ctx, "loading state, falling back to defaults",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
			s.quarantine(ctx)
		} else {
			s.logger.InfoContext(ctx, "no state file, creating default", slog.String("path", s.path))
		}
		doc, migrated = game.NewDocument(), true
	}
	s.doc = doc
	if migrated {
		s.persistLocked(ctx)
		return
	}
	if b, err := encode(doc); err == nil {
		s.last = b
	}
}

// View runs fn with read access to the document. fn must not retain or
// mutate it.
func (s *Store) View(fn func(doc *game.Document) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.doc)
}

// Update runs fn with exclusive access to the document and persists the
// result when fn returns nil. fn must finish validating before it mutates.
func (s *Store) Update(ctx context.Context, fn func(doc *game.Document) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "state mutation panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			s.restoreLocked(ctx)
			err = game.Internal("unexpected failure")
		}
	}()

	if err := fn(s.doc); err != nil {
		return err
	}
	s.persistLocked(ctx)
	return nil
}

// Save writes the current document to disk.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// Snapshot returns the encoded document as of now.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return encode(s.doc)
}

// Stats reports the size of the document and its collections.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := encode(s.doc)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Bytes:     len(b),
		Players:   len(s.doc.Players),
		Upgrades:  len(s.doc.Upgrades),
		Missions:  len(s.doc.Missions),
		LootItems: len(s.doc.LootTable),
		Roles:     len(s.doc.Income),
	}, nil
}

// persistLocked writes the document. Failures are logged and returned but
// never undo the in-memory state.
func (s *Store) persistLocked(ctx context.Context) error {
	b, err := encode(s.doc)
	if err != nil {
		s.logger.ErrorContext(ctx, "encoding state", slog.String("error", err.Error()))
		return fmt.Errorf("encoding state: %w", err)
	}
	s.last = b
	if err := WriteFile(s.path, b); err != nil {
		s.logger.ErrorContext(ctx, "saving state",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

func (s *Store) restoreLocked(ctx context.Context) {
	if s.last == nil {
		s.doc = game.NewDocument()
		return
	}
	doc, _, err := decode(s.last)
	if err != nil {
		s.logger.ErrorContext(ctx, "restoring state", slog.String("error", err.Error()))
		return
	}
	s.doc = doc
}

// quarantine keeps an unreadable snapshot next to the state file so the
// default document does not silently destroy it.
func (s *Store) quarantine(ctx context.Context) {
	dst := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
	if err := os.Rename(s.path, dst); err != nil {
		s.logger.WarnContext(ctx, "keeping unreadable state", slog.String("error", err.Error()))
		return
	}
	s.logger.WarnContext(ctx, "moved unreadable state aside", slog.String("path", dst))
}

func readDocument(path string) (*game.Document, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	return decode(b)
}

func decode(b []byte) (*game.Document, bool, error) {
	doc := &game.Document{Settings: game.DefaultSettings()}
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, false, fmt.Errorf("decoding state: %w", err)
	}
	return doc, migrate(doc), nil
}

func encode(doc *game.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "    ")
}

// WriteFile replaces path with b atomically.
func WriteFile(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
