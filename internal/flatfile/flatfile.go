// Package flatfile stores the tube catalog and the batch ledger as two CSV
// files. Every save rewrites the whole file through a temporary file that is
// renamed over the original, so a crash never leaves a truncated table.
package flatfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/erazemk/tubetes/internal/model"
)

// Default file names inside the data directory.
const (
	TypesFile   = "tipos_tubetes.csv"
	BatchesFile = "inventario.csv"
)

// Store reads and writes the two tables in Dir.
type Store struct {
	Dir string
	// Location is used to write timestamps and to read timestamps without an offset.
	Location *time.Location
}

// New returns a Store for dir, creating the directory if needed.
func New(dir string, loc *time.Location) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{Dir: dir, Location: loc}, nil
}

// LoadTypes reads the catalog. A missing file is an empty catalog.
func (s *Store) LoadTypes(ctx context.Context) ([]model.TypeDefinition, error) {
	var types []model.TypeDefinition
	err := s.read(ctx, TypesFile, func(r io.Reader) error {
		var err error
		types, err = DecodeTypes(r)
		return err
	})
	return types, err
}

// SaveTypes replaces the catalog file.
func (s *Store) SaveTypes(ctx context.Context, types []model.TypeDefinition) error {
	return s.write(ctx, TypesFile, func(w io.Writer) error {
		return EncodeTypes(w, types)
	})
}

// LoadBatches reads the ledger. A missing file is an empty ledger.
func (s *Store) LoadBatches(ctx context.Context) ([]model.BatchRecord, error) {
	var batches []model.BatchRecord
	err := s.read(ctx, BatchesFile, func(r io.Reader) error {
		var err error
		batches, err = DecodeBatches(r, s.Location)
		return err
	})
	return batches, err
}

// SaveBatches replaces the ledger file.
func (s *Store) SaveBatches(ctx context.Context, batches []model.BatchRecord) error {
	return s.write(ctx, BatchesFile, func(w io.Writer) error {
		return EncodeBatches(w, batches, s.Location)
	})
}

func (s *Store) read(ctx context.Context, name string, decode func(io.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(s.Dir, name)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	if err := decode(f); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	return nil
}

// write encodes into a temporary file in Dir, syncs it and renames it over name.
func (s *Store) write(ctx context.Context, name string, encode func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.Dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", name, err)
	}
	// Removing after a successful rename fails harmlessly.
	defer os.Remove(tmp.Name())

	if err := encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}
