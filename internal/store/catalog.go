package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/tubetes/internal/model"
)

// Tables keeps the tube catalog and the batch ledger in SQLite. Each save
// replaces the whole table inside one transaction.
type Tables struct {
	DB *sql.DB
}

// LoadTypes returns the catalog in registration order.
func (t *Tables) LoadTypes(ctx context.Context) ([]model.TypeDefinition, error) {
	rows, err := t.DB.QueryContext(ctx,
		`SELECT name, description, cure_hours FROM tube_types ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tube types: %w", err)
	}
	defer rows.Close()

	var types []model.TypeDefinition
	for rows.Next() {
		var td model.TypeDefinition
		if err := rows.Scan(&td.Name, &td.Description, &td.CureHours); err != nil {
			return nil, fmt.Errorf("scanning tube type: %w", err)
		}
		types = append(types, td)
	}
	return types, rows.Err()
}

// SaveTypes replaces the catalog.
func (t *Tables) SaveTypes(ctx context.Context, types []model.TypeDefinition) error {
	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tube_types`); err != nil {
		return fmt.Errorf("clearing tube types: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tube_types (position, name, description, cure_hours) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing tube type insert: %w", err)
	}
	defer stmt.Close()

	for i, td := range types {
		if _, err := stmt.ExecContext(ctx, i, td.Name, td.Description, td.CureHours); err != nil {
			return fmt.Errorf("inserting tube type %q: %w", td.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tube types: %w", err)
	}
	return nil
}

// LoadBatches returns the ledger in insertion order.
func (t *Tables) LoadBatches(ctx context.Context) ([]model.BatchRecord, error) {
	rows, err := t.DB.QueryContext(ctx,
		`SELECT type_name, description, quantity, intake_at, release_at,
		        withdrawn_at, withdrawn_quantity, withdrawal_humidity
		 FROM batches ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var batches []model.BatchRecord
	for rows.Next() {
		var b model.BatchRecord
		var withdrawnAt sql.NullTime
		var withdrawnQty, humidity sql.NullInt64
		if err := rows.Scan(&b.TypeName, &b.Description, &b.Quantity, &b.IntakeAt, &b.ReleaseAt,
			&withdrawnAt, &withdrawnQty, &humidity); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		b.Index = len(batches)
		if withdrawnAt.Valid {
			at := withdrawnAt.Time
			b.WithdrawnAt = &at
		}
		b.WithdrawnQuantity = nullInt(withdrawnQty)
		b.WithdrawalHumidity = nullInt(humidity)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// SaveBatches replaces the ledger.
func (t *Tables) SaveBatches(ctx context.Context, batches []model.BatchRecord) error {
	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batches`); err != nil {
		return fmt.Errorf("clearing batches: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO batches (position, type_name, description, quantity, intake_at, release_at,
		                      withdrawn_at, withdrawn_quantity, withdrawal_humidity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing batch insert: %w", err)
	}
	defer stmt.Close()

	for i, b := range batches {
		var withdrawnAt sql.NullTime
		if b.WithdrawnAt != nil {
			withdrawnAt = sql.NullTime{Time: *b.WithdrawnAt, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, i, b.TypeName, b.Description, b.Quantity,
			b.IntakeAt, b.ReleaseAt, withdrawnAt,
			toNullInt(b.WithdrawnQuantity), toNullInt(b.WithdrawalHumidity)); err != nil {
			return fmt.Errorf("inserting batch %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batches: %w", err)
	}
	return nil
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func toNullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
