package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/erazemk/tubetes/internal/model"
)

// RegisterType appends a new tube type to the catalog and saves the catalog.
func (l *Ledger) RegisterType(ctx context.Context, name, description string, cureHours int) (model.TypeDefinition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.TypeDefinition{}, invalid("type_name", "must not be empty")
	}
	if cureHours < 1 {
		return model.TypeDefinition{}, invalid("cure_hours", "must be at least 1, got %d", cureHours)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := findType(l.types, name); ok {
		return model.TypeDefinition{}, fmt.Errorf("%w: %q", ErrDuplicateType, name)
	}

	td := model.TypeDefinition{Name: name, Description: description, CureHours: cureHours}
	next := append(slices.Clone(l.types), td)
	if err := l.store.SaveTypes(ctx, next); err != nil {
		return model.TypeDefinition{}, fmt.Errorf("%w: saving types: %w", ErrPersistence, err)
	}
	l.types = next
	return td, nil
}

// LookupType returns the first type named name in catalog order.
func (l *Ledger) LookupType(name string) (model.TypeDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lookupType(name)
}

func (l *Ledger) lookupType(name string) (model.TypeDefinition, error) {
	if len(l.types) == 0 {
		return model.TypeDefinition{}, fmt.Errorf("type %q: catalog is empty: %w", name, ErrNotFound)
	}
	td, ok := findType(l.types, name)
	if !ok {
		return model.TypeDefinition{}, fmt.Errorf("type %q: %w", name, ErrNotFound)
	}
	return td, nil
}

// Types returns the catalog in registration order.
func (l *Ledger) Types() []model.TypeDefinition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.types)
}

func findType(types []model.TypeDefinition, name string) (model.TypeDefinition, bool) {
	for _, t := range types {
		if t.Name == name {
			return t, true
		}
	}
	return model.TypeDefinition{}, false
}
