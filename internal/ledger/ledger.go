// Package ledger holds the tube type catalog and the oven batch ledger.
//
// A Ledger is the application state: it is loaded once from a Persister and
// every mutation saves the affected table in full before the new state becomes
// visible. Nothing coordinates separate processes sharing the same store; the
// last save wins.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erazemk/tubetes/internal/model"
)

// Persister loads and saves the two tables backing a Ledger.
type Persister interface {
	LoadTypes(ctx context.Context) ([]model.TypeDefinition, error)
	SaveTypes(ctx context.Context, types []model.TypeDefinition) error
	LoadBatches(ctx context.Context) ([]model.BatchRecord, error)
	SaveBatches(ctx context.Context, batches []model.BatchRecord) error
}

// PartialPolicy decides what happens to a batch when less than its full
// quantity is withdrawn.
type PartialPolicy string

const (
	// PartialClose closes the batch after one withdrawal, whatever is left in it.
	PartialClose PartialPolicy = "close"
	// PartialSplit moves the withdrawn amount into a new closed record and keeps
	// the remainder open.
	PartialSplit PartialPolicy = "split"
)

// ParsePartialPolicy parses a policy name. The empty string means PartialClose.
func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch PartialPolicy(s) {
	case "", PartialClose:
		return PartialClose, nil
	case PartialSplit:
		return PartialSplit, nil
	}
	return "", fmt.Errorf("unknown partial withdrawal policy %q (want %q or %q)", s, PartialClose, PartialSplit)
}

// FutureTolerance is how far past the current instant a withdrawal time may be.
const FutureTolerance = time.Minute

// Options configures a Ledger.
type Options struct {
	Partial PartialPolicy
	// Now returns the current instant. Defaults to time.Now.
	Now func() time.Time
}

// Ledger is the in-memory catalog and batch ledger.
type Ledger struct {
	mu      sync.RWMutex
	store   Persister
	partial PartialPolicy
	now     func() time.Time

	types   []model.TypeDefinition
	batches []model.BatchRecord
}

// Open loads both tables from p.
func Open(ctx context.Context, p Persister, opts Options) (*Ledger, error) {
	partial, err := ParsePartialPolicy(string(opts.Partial))
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	types, err := p.LoadTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading types: %w", err)
	}
	batches, err := p.LoadBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading batches: %w", err)
	}
	for i := range batches {
		batches[i].Index = i
	}

	return &Ledger{
		store:   p,
		partial: partial,
		now:     now,
		types:   types,
		batches: batches,
	}, nil
}

// Now returns the ledger's current instant.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// Policy returns the partial withdrawal policy.
func (l *Ledger) Policy() PartialPolicy {
	return l.partial
}
