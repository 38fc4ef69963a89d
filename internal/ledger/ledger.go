package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ataix-trade-bot-go/internal/models"
)

// CorruptError means the backing file exists but is not well-formed. It is
// fatal: the store never attempts repair.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("ledger file %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// document is the on-disk shape: one top-level field holding the ordered
// order history.
type document struct {
	Orders []models.OrderRecord `json:"orders"`
}

// Store is the durable local order ledger. Callers load the full sequence,
// mutate in memory and save the full sequence back; Save replaces the file
// atomically so a partial write can never be observed. At most one process
// may use a given ledger file at a time.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored order sequence in insertion order. A missing or
// blank file is an empty ledger, not an error.
func (s *Store) Load() ([]models.OrderRecord, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read ledger file %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &CorruptError{Path: s.path, Err: err}
	}
	return doc.Orders, nil
}

// Save replaces the file contents with the given sequence. The document is
// written to a temporary file in the same directory and renamed into place,
// so readers observe either the old or the new complete sequence.
func (s *Store) Save(records []models.OrderRecord) error {
	if records == nil {
		records = []models.OrderRecord{}
	}
	raw, err := json.MarshalIndent(document{Orders: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode ledger: %w", err)
	}
	raw = append(raw, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cannot create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cannot write ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot write ledger file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot replace ledger file: %w", err)
	}
	return nil
}
