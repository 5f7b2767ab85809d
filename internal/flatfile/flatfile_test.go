package flatfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/tubetes/internal/model"
)

func intp(n int) *int { return &n }

func sampleBatches() []model.BatchRecord {
	t0 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	out := t0.Add(3 * time.Hour)
	return []model.BatchRecord{
		{
			Index: 0, TypeName: "X", Description: "tubete, 40mm", Quantity: 6,
			IntakeAt: t0, ReleaseAt: t0.Add(2 * time.Hour),
			WithdrawnAt: &out, WithdrawnQuantity: intp(4), WithdrawalHumidity: intp(55),
		},
		{
			Index: 1, TypeName: "Y", Description: "", Quantity: 20,
			IntakeAt: t0.Add(time.Hour), ReleaseAt: t0.Add(25 * time.Hour),
		},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data"), time.UTC)
	require.NoError(t, err)
	return s
}

func TestLoadMissingFilesIsEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	types, err := s.LoadTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)

	batches, err := s.LoadBatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestTypesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := []model.TypeDefinition{
		{Name: "X", Description: "tubete \"grosso\"", CureHours: 2},
		{Name: "Y", Description: "linha 2\nlote B", CureHours: 48},
	}

	require.NoError(t, s.SaveTypes(ctx, want))
	got, err := s.LoadTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBatchesRoundTripPreservesNulls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := sampleBatches()

	require.NoError(t, s.SaveBatches(ctx, want))
	got, err := s.LoadBatches(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.Index, g.Index)
		assert.Equal(t, w.TypeName, g.TypeName)
		assert.Equal(t, w.Description, g.Description)
		assert.Equal(t, w.Quantity, g.Quantity)
		assert.True(t, w.IntakeAt.Equal(g.IntakeAt), "row %d intake", i)
		assert.True(t, w.ReleaseAt.Equal(g.ReleaseAt), "row %d release", i)
		assert.Equal(t, w.WithdrawnQuantity, g.WithdrawnQuantity)
		assert.Equal(t, w.WithdrawalHumidity, g.WithdrawalHumidity)
		if w.WithdrawnAt == nil {
			assert.Nil(t, g.WithdrawnAt, "row %d: null withdrawal must stay null", i)
		} else {
			require.NotNil(t, g.WithdrawnAt)
			assert.True(t, w.WithdrawnAt.Equal(*g.WithdrawnAt))
		}
	}
}

func TestSaveWritesHeaderAndEmptyCells(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveBatches(context.Background(), sampleBatches()[1:]))

	data, err := os.ReadFile(filepath.Join(s.Dir, BatchesFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Tipo,Descricao,Quantidade,Entrada,Retirada Prevista,Saida,Quantidade Saida,Umidade Saida", lines[0])
	assert.Equal(t, "Y,,20,2026-03-02 09:00:00,2026-03-03 09:00:00,,,", lines[1])
}

func TestSaveLeavesNoTemporaryFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveTypes(ctx, []model.TypeDefinition{{Name: "X", CureHours: 1}}))
	require.NoError(t, s.SaveTypes(ctx, []model.TypeDefinition{{Name: "X", CureHours: 1}, {Name: "Y", CureHours: 2}}))

	entries, err := os.ReadDir(s.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, TypesFile, entries[0].Name())
}

func TestSaveCancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SaveTypes(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(s.Dir, TypesFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDecodeBatchesFromDataFrameExport(t *testing.T) {
	// Shape written by pandas.DataFrame.to_csv after a withdrawal: float
	// counts in NaN-mixed columns and microsecond timestamps.
	in := "Tipo,Descricao,Quantidade,Entrada,Retirada Prevista,Saida,Quantidade Saida,Umidade Saida\n" +
		"X,tubete,6,2026-03-02 08:00:00,2026-03-02 10:00:00,2026-03-02 11:15:42.123456,4.0,55.0\n" +
		"X,tubete,10,2026-03-02 09:30:00,2026-03-02 11:30:00,,,\n"

	got, err := DecodeBatches(strings.NewReader(in), time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 4, *got[0].WithdrawnQuantity)
	assert.Equal(t, 55, *got[0].WithdrawalHumidity)
	assert.Equal(t, 123456000, got[0].WithdrawnAt.Nanosecond())
	assert.Nil(t, got[1].WithdrawnAt)
	assert.Nil(t, got[1].WithdrawnQuantity)
	assert.Equal(t, 1, got[1].Index)
}

func TestDecodeTypesReorderedColumnsAndBOM(t *testing.T) {
	in := "\ufeffTempo Estufa (h),Tipo,Descricao\n24.0,A,primeiro\n2,B,\n"

	got, err := DecodeTypes(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []model.TypeDefinition{
		{Name: "A", Description: "primeiro", CureHours: 24},
		{Name: "B", CureHours: 2},
	}, got)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing column", "Tipo,Descricao\nX,y\n"},
		{"bad cure hours", "Tipo,Descricao,Tempo Estufa (h)\nX,y,2.5\n"},
		{"missing cure hours", "Tipo,Descricao,Tempo Estufa (h)\nX,y,\n"},
		{"short row", "Tipo,Descricao,Tempo Estufa (h)\nX\n"},
		{"empty file", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTypes(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}

	_, err := DecodeBatches(strings.NewReader(
		"Tipo,Descricao,Quantidade,Entrada,Retirada Prevista,Saida,Quantidade Saida,Umidade Saida\n"+
			"X,,5,yesterday,2026-03-02 10:00:00,,,\n"), time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestEncodeBatchesUsesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	var buf bytes.Buffer
	require.NoError(t, EncodeBatches(&buf, sampleBatches()[1:], loc))
	assert.Contains(t, buf.String(), "2026-03-02 06:00:00")

	got, err := DecodeBatches(&buf, loc)
	require.NoError(t, err)
	assert.True(t, got[0].IntakeAt.Equal(sampleBatches()[1].IntakeAt))
}

func TestDecodeRejectsRowsOutsideModelRules(t *testing.T) {
	typeTests := []struct {
		name string
		row  string
	}{
		{"zero cure hours", "X,y,0"},
		{"negative cure hours", "X,y,-2"},
		{"empty name", " ,y,2"},
	}
	for _, tt := range typeTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTypes(strings.NewReader("Tipo,Descricao,Tempo Estufa (h)\n" + tt.row + "\n"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "row 2")
		})
	}

	header := strings.Join(BatchColumns, ",") + "\n"
	batchTests := []struct {
		name string
		row  string
	}{
		{"negative quantity", "X,,-1,2026-03-02 08:00:00,2026-03-02 10:00:00,,,"},
		{"humidity above 100", "X,,0,2026-03-02 08:00:00,2026-03-02 10:00:00,2026-03-02 11:00:00,5,101"},
		{"negative humidity", "X,,0,2026-03-02 08:00:00,2026-03-02 10:00:00,2026-03-02 11:00:00,5,-1"},
		{"zero withdrawn quantity", "X,,5,2026-03-02 08:00:00,2026-03-02 10:00:00,2026-03-02 11:00:00,0,50"},
		{"withdrawal fields on open batch", "X,,5,2026-03-02 08:00:00,2026-03-02 10:00:00,,5,"},
		{"humidity on open batch", "X,,5,2026-03-02 08:00:00,2026-03-02 10:00:00,,,40"},
	}
	for _, tt := range batchTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBatches(strings.NewReader(header+tt.row+"\n"), time.UTC)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "row 2")
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, TypesFile),
		[]byte("Tipo,Descricao,Tempo Estufa (h)\nX,,0\n"), 0o644))

	_, err := s.LoadTypes(context.Background())
	assert.Error(t, err)
}

func TestRepeatedWallClockHourRoundTrips(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 01:30 happens twice on 2025-11-02 in New York.
	first := time.Date(2025, 11, 2, 5, 30, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	require.Equal(t, first.In(loc).Format(TimeLayout), second.In(loc).Format(TimeLayout))

	batches := []model.BatchRecord{
		{TypeName: "X", Quantity: 1, IntakeAt: first, ReleaseAt: second},
		{TypeName: "X", Quantity: 1, IntakeAt: second, ReleaseAt: second.Add(time.Hour)},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeBatches(&buf, batches, loc))
	assert.Contains(t, buf.String(), "2025-11-02 01:30:00-0", "a repeated wall clock time carries its offset")
	assert.Contains(t, buf.String(), ",2025-11-02 02:30:00,", "unambiguous times stay naive")

	got, err := DecodeBatches(&buf, loc)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range batches {
		assert.True(t, batches[i].IntakeAt.Equal(got[i].IntakeAt), "row %d intake: %v", i, got[i].IntakeAt)
		assert.True(t, batches[i].ReleaseAt.Equal(got[i].ReleaseAt), "row %d release: %v", i, got[i].ReleaseAt)
	}
}
