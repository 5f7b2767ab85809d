package ledger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/erazemk/tubetes/internal/model"
)

// IntakeBatch records a batch entering the oven. The release time is fixed
// here from the type's current cure time.
func (l *Ledger) IntakeBatch(ctx context.Context, typeName string, quantity int, intakeAt time.Time) (model.BatchRecord, error) {
	if quantity < 1 {
		return model.BatchRecord{}, invalid("quantity", "must be at least 1, got %d", quantity)
	}
	if intakeAt.IsZero() {
		return model.BatchRecord{}, invalid("intake_at", "required")
	}
	intakeAt = intakeAt.Truncate(time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()

	td, err := l.lookupType(typeName)
	if err != nil {
		return model.BatchRecord{}, err
	}

	rec := model.BatchRecord{
		Index:       len(l.batches),
		TypeName:    td.Name,
		Description: td.Description,
		Quantity:    quantity,
		IntakeAt:    intakeAt,
		ReleaseAt:   intakeAt.Add(td.CureDuration()),
	}
	next := append(cloneBatches(l.batches), rec)
	if err := l.commit(ctx, next); err != nil {
		return model.BatchRecord{}, err
	}
	return rec.Clone(), nil
}

// AvailableBatches returns the open batches in ledger order.
func (l *Ledger) AvailableBatches() []model.BatchRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var open []model.BatchRecord
	for _, b := range l.batches {
		if b.Open() {
			open = append(open, b.Clone())
		}
	}
	return open
}

// Batches returns every record, open and closed, in ledger order.
func (l *Ledger) Batches() []model.BatchRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneBatches(l.batches)
}

// Batch returns the record at index.
func (l *Ledger) Batch(index int) (model.BatchRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.batches) {
		return model.BatchRecord{}, fmt.Errorf("batch %d: %w", index, ErrNotFound)
	}
	return l.batches[index].Clone(), nil
}

// WithdrawBatch records a withdrawal from the open batch at index.
//
// The release gate compares withdrawnAt (the current instant when zero)
// against the batch's release time. A withdrawal time later than the current
// instant plus FutureTolerance is rejected so the gate cannot be skipped.
// The returned record is the one holding this withdrawal.
func (l *Ledger) WithdrawBatch(ctx context.Context, index int, withdrawnAt time.Time, quantity, humidity int) (model.BatchRecord, error) {
	if quantity < 1 {
		return model.BatchRecord{}, invalid("quantity", "must be at least 1, got %d", quantity)
	}
	if humidity < 0 || humidity > 100 {
		return model.BatchRecord{}, invalid("humidity", "must be between 0 and 100, got %d", humidity)
	}

	now := l.now()
	if withdrawnAt.IsZero() {
		withdrawnAt = now
	}
	if withdrawnAt.After(now.Add(FutureTolerance)) {
		return model.BatchRecord{}, invalid("withdrawn_at", "%s is in the future", withdrawnAt.Format(time.DateTime))
	}
	withdrawnAt = withdrawnAt.Truncate(time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.batches) {
		return model.BatchRecord{}, fmt.Errorf("batch %d: %w", index, ErrNotFound)
	}
	cur := l.batches[index]
	if !cur.Open() {
		return model.BatchRecord{}, fmt.Errorf("batch %d: %w", index, ErrAlreadyWithdrawn)
	}
	if quantity > cur.Quantity {
		return model.BatchRecord{}, invalid("quantity", "must not exceed %d, got %d", cur.Quantity, quantity)
	}
	if !cur.ReleasedAt(withdrawnAt) {
		return model.BatchRecord{}, fmt.Errorf("batch %d releases at %s: %w",
			index, cur.ReleaseAt.Format(time.DateTime), ErrNotReleasedYet)
	}

	next := cloneBatches(l.batches)
	var out model.BatchRecord
	if l.partial == PartialSplit && quantity < cur.Quantity {
		next[index].Quantity -= quantity

		out = cur.Clone()
		out.Index = len(next)
		out.Quantity = 0
		setWithdrawal(&out, withdrawnAt, quantity, humidity)
		next = append(next, out)
	} else {
		out = next[index]
		out.Quantity -= quantity
		setWithdrawal(&out, withdrawnAt, quantity, humidity)
		next[index] = out
	}

	if err := l.commit(ctx, next); err != nil {
		return model.BatchRecord{}, err
	}
	return out.Clone(), nil
}

func setWithdrawal(b *model.BatchRecord, at time.Time, quantity, humidity int) {
	b.WithdrawnAt = &at
	b.WithdrawnQuantity = &quantity
	b.WithdrawalHumidity = &humidity
}

// commit saves next and makes it the current ledger. Caller holds l.mu.
func (l *Ledger) commit(ctx context.Context, next []model.BatchRecord) error {
	if err := l.store.SaveBatches(ctx, next); err != nil {
		return fmt.Errorf("%w: saving batches: %w", ErrPersistence, err)
	}
	l.batches = next
	return nil
}

func cloneBatches(batches []model.BatchRecord) []model.BatchRecord {
	out := slices.Clone(batches)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}
