package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/tubetes/internal/db"
	"github.com/erazemk/tubetes/internal/ledger"
	"github.com/erazemk/tubetes/internal/model"
)

func intp(n int) *int { return &n }

func TestTablesTypesRoundTrip(t *testing.T) {
	tables := &Tables{DB: db.NewTestDB(t)}
	ctx := context.Background()

	empty, err := tables.LoadTypes(ctx)
	if err != nil {
		t.Fatalf("LoadTypes: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty catalog, got %d", len(empty))
	}

	want := []model.TypeDefinition{
		{Name: "Z", Description: "last alphabetically", CureHours: 4},
		{Name: "A", CureHours: 48},
	}
	if err := tables.SaveTypes(ctx, want); err != nil {
		t.Fatalf("SaveTypes: %v", err)
	}
	// A second save must replace, not append.
	if err := tables.SaveTypes(ctx, want); err != nil {
		t.Fatalf("SaveTypes again: %v", err)
	}

	got, err := tables.LoadTypes(ctx)
	if err != nil {
		t.Fatalf("LoadTypes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 types, got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("type %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestTablesBatchesRoundTrip(t *testing.T) {
	tables := &Tables{DB: db.NewTestDB(t)}
	ctx := context.Background()

	t0 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	out := t0.Add(3 * time.Hour)
	want := []model.BatchRecord{
		{
			Index: 0, TypeName: "X", Description: "d", Quantity: 6,
			IntakeAt: t0, ReleaseAt: t0.Add(2 * time.Hour),
			WithdrawnAt: &out, WithdrawnQuantity: intp(4), WithdrawalHumidity: intp(55),
		},
		{Index: 1, TypeName: "Y", Quantity: 20, IntakeAt: t0, ReleaseAt: t0.Add(24 * time.Hour)},
	}
	if err := tables.SaveBatches(ctx, want); err != nil {
		t.Fatalf("SaveBatches: %v", err)
	}

	got, err := tables.LoadBatches(ctx)
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(got))
	}

	if got[0].Index != 0 || got[1].Index != 1 {
		t.Errorf("unexpected indices %d, %d", got[0].Index, got[1].Index)
	}
	if !got[0].IntakeAt.Equal(t0) || !got[0].ReleaseAt.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("timestamps not preserved: %v %v", got[0].IntakeAt, got[0].ReleaseAt)
	}
	if got[0].WithdrawnAt == nil || !got[0].WithdrawnAt.Equal(out) {
		t.Errorf("expected withdrawal at %v, got %v", out, got[0].WithdrawnAt)
	}
	if got[0].WithdrawnQuantity == nil || *got[0].WithdrawnQuantity != 4 {
		t.Errorf("expected withdrawn quantity 4, got %v", got[0].WithdrawnQuantity)
	}
	if got[0].WithdrawalHumidity == nil || *got[0].WithdrawalHumidity != 55 {
		t.Errorf("expected humidity 55, got %v", got[0].WithdrawalHumidity)
	}
	if got[1].WithdrawnAt != nil || got[1].WithdrawnQuantity != nil || got[1].WithdrawalHumidity != nil {
		t.Errorf("open batch must keep null withdrawal fields, got %+v", got[1])
	}
}

func TestTablesSaveBatchesRollsBackOnConstraint(t *testing.T) {
	tables := &Tables{DB: db.NewTestDB(t)}
	ctx := context.Background()
	t0 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	good := []model.BatchRecord{{TypeName: "X", Quantity: 1, IntakeAt: t0, ReleaseAt: t0}}
	if err := tables.SaveBatches(ctx, good); err != nil {
		t.Fatalf("SaveBatches: %v", err)
	}

	bad := append(good, model.BatchRecord{
		TypeName: "X", Quantity: 1, IntakeAt: t0, ReleaseAt: t0, WithdrawalHumidity: intp(150),
	})
	if err := tables.SaveBatches(ctx, bad); err == nil {
		t.Fatal("expected constraint error for humidity 150")
	}

	got, err := tables.LoadBatches(ctx)
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("failed save must leave previous rows, got %d rows", len(got))
	}
}

func TestTablesBackLedgerAcrossReopen(t *testing.T) {
	database, path := db.NewTestFileDB(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	now := t0.Add(3 * time.Hour)
	opts := ledger.Options{Now: func() time.Time { return now }}

	led, err := ledger.Open(ctx, &Tables{DB: database}, opts)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	if _, err := led.RegisterType(ctx, "X", "tubete", 2); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	if _, err := led.IntakeBatch(ctx, "X", 10, t0); err != nil {
		t.Fatalf("IntakeBatch: %v", err)
	}
	if _, err := led.WithdrawBatch(ctx, 0, time.Time{}, 10, 60); err != nil {
		t.Fatalf("WithdrawBatch: %v", err)
	}
	database.Close()

	reopened, err := db.Open(path)
	if err != nil {
		t.Fatalf("reopening %s: %v", path, err)
	}
	defer reopened.Close()

	again, err := ledger.Open(ctx, &Tables{DB: reopened}, opts)
	if err != nil {
		t.Fatalf("ledger.Open after reopen: %v", err)
	}
	if len(again.Types()) != 1 || len(again.Batches()) != 1 {
		t.Fatalf("expected 1 type and 1 batch, got %d and %d", len(again.Types()), len(again.Batches()))
	}
	b := again.Batches()[0]
	if b.Open() || b.Quantity != 0 || *b.WithdrawalHumidity != 60 {
		t.Errorf("unexpected batch after reopen: %+v", b)
	}
	if len(again.AvailableBatches()) != 0 {
		t.Error("closed batch must not be available")
	}
}

func TestTablesRejectRowsOutsideModelRules(t *testing.T) {
	tables := &Tables{DB: db.NewTestDB(t)}
	ctx := context.Background()
	t0 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	out := t0.Add(time.Hour)

	tests := []struct {
		name  string
		batch model.BatchRecord
	}{
		{"negative quantity", model.BatchRecord{TypeName: "X", Quantity: -1, IntakeAt: t0, ReleaseAt: t0}},
		{"zero withdrawn quantity", model.BatchRecord{TypeName: "X", IntakeAt: t0, ReleaseAt: t0,
			WithdrawnAt: &out, WithdrawnQuantity: intp(0), WithdrawalHumidity: intp(50)}},
		{"withdrawal fields on open batch", model.BatchRecord{TypeName: "X", Quantity: 5, IntakeAt: t0, ReleaseAt: t0,
			WithdrawnQuantity: intp(5)}},
		{"humidity on open batch", model.BatchRecord{TypeName: "X", Quantity: 5, IntakeAt: t0, ReleaseAt: t0,
			WithdrawalHumidity: intp(40)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tables.SaveBatches(ctx, []model.BatchRecord{tt.batch}); err == nil {
				t.Error("expected constraint error")
			}
		})
	}

	for _, td := range []model.TypeDefinition{{Name: "X", CureHours: 0}, {Name: " ", CureHours: 2}} {
		if err := tables.SaveTypes(ctx, []model.TypeDefinition{td}); err == nil {
			t.Errorf("expected constraint error for %+v", td)
		}
	}
}
