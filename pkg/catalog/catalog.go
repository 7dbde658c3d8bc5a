// Package catalog keeps a local record of completed conversions in pebble.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/stdf2h5/stdf2h5/pkg/analysis"
)

// Errors
var (
	ErrNotFound = &CatalogError{"entry not found"}
	ErrClosed   = &CatalogError{"catalog is closed"}
)

// CatalogError represents a catalog error
type CatalogError struct {
	Message string
}

func (e *CatalogError) Error() string {
	return e.Message
}

// Entry describes one successful conversion
type Entry struct {
	ID        ksuid.KSUID       `json:"id"`
	Source    string            `json:"source"`
	Output    string            `json:"output"`
	CreatedAt time.Time         `json:"created_at"`
	FinishT   uint32            `json:"finish_t"`
	Records   int               `json:"records"`
	Skipped   int               `json:"skipped"`
	Orphans   int               `json:"orphans,omitempty"`
	Lot       *analysis.LotInfo `json:"lot,omitempty"`
	Summary   *analysis.Summary `json:"summary,omitempty"`
}

// Store is a pebble backed catalog. Keys are KSUID bytes, so iteration order
// is creation order.
type Store struct {
	db *pebble.DB
}

// Open opens or creates the catalog in dir
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Put stores e under a new ID, which is returned and set on e
func (s *Store) Put(e *Entry) (ksuid.KSUID, error) {
	if s.db == nil {
		return ksuid.Nil, ErrClosed
	}
	e.ID = ksuid.New()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = e.ID.Time()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return ksuid.Nil, err
	}
	if err := s.db.Set(e.ID.Bytes(), data, pebble.Sync); err != nil {
		return ksuid.Nil, err
	}
	return e.ID, nil
}

// Get returns the entry with the given ID
func (s *Store) Get(id ksuid.KSUID) (*Entry, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	data, closer, err := s.db.Get(id.Bytes())
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", id, err)
	}
	return &e, nil
}

// List returns every entry, newest first
func (s *Store) List() ([]*Entry, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	entries := []*Entry{}
	for valid := iter.Last(); valid; valid = iter.Prev() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, iter.Error()
}

// Delete removes the entry with the given ID
func (s *Store) Delete(id ksuid.KSUID) error {
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.db.Delete(id.Bytes(), pebble.Sync)
}

// Close closes the database
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
