package flatfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/tubetes/internal/model"
)

// Column headers of the catalog table.
var TypeColumns = []string{"Tipo", "Descricao", "Tempo Estufa (h)"}

// Column headers of the ledger table.
var BatchColumns = []string{
	"Tipo", "Descricao", "Quantidade",
	"Entrada", "Retirada Prevista",
	"Saida", "Quantidade Saida", "Umidade Saida",
}

// TimeLayout is how timestamps are written. Sub-second digits are only
// written when present.
const TimeLayout = "2006-01-02 15:04:05.999999"

// offsetLayout is used instead of TimeLayout for wall clock times that occur
// twice in the location, such as the hour repeated when daylight saving ends.
const offsetLayout = "2006-01-02 15:04:05.999999Z07:00"

// Layouts accepted when reading timestamps. The space-separated form also
// accepts a fractional seconds suffix.
var parseLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// EncodeTypes writes the catalog as CSV with a header row.
func EncodeTypes(w io.Writer, types []model.TypeDefinition) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TypeColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, t := range types {
		if err := cw.Write([]string{t.Name, t.Description, strconv.Itoa(t.CureHours)}); err != nil {
			return fmt.Errorf("writing type %q: %w", t.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeTypes reads a catalog written by EncodeTypes or by the spreadsheet
// tooling that produced the original files.
func DecodeTypes(r io.Reader) ([]model.TypeDefinition, error) {
	records, idx, err := readTable(r, TypeColumns)
	if err != nil {
		return nil, err
	}

	types := make([]model.TypeDefinition, 0, len(records))
	for i, rec := range records {
		hours, err := parseInt(rec[idx[2]])
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", i+2, TypeColumns[2], err)
		}
		if hours == nil {
			return nil, fmt.Errorf("row %d: %s: missing value", i+2, TypeColumns[2])
		}
		if *hours < 1 {
			return nil, fmt.Errorf("row %d: %s: must be at least 1, got %d", i+2, TypeColumns[2], *hours)
		}
		if strings.TrimSpace(rec[idx[0]]) == "" {
			return nil, fmt.Errorf("row %d: %s: missing value", i+2, TypeColumns[0])
		}
		types = append(types, model.TypeDefinition{
			Name:        rec[idx[0]],
			Description: rec[idx[1]],
			CureHours:   *hours,
		})
	}
	return types, nil
}

// EncodeBatches writes the ledger as CSV with a header row. Timestamps are
// written in loc; nil fields are written as empty cells.
func EncodeBatches(w io.Writer, batches []model.BatchRecord, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BatchColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, b := range batches {
		row := []string{
			b.TypeName,
			b.Description,
			strconv.Itoa(b.Quantity),
			formatTime(&b.IntakeAt, loc),
			formatTime(&b.ReleaseAt, loc),
			formatTime(b.WithdrawnAt, loc),
			formatInt(b.WithdrawnQuantity),
			formatInt(b.WithdrawalHumidity),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing batch %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeBatches reads a ledger table. Naive timestamps are interpreted in loc.
func DecodeBatches(r io.Reader, loc *time.Location) ([]model.BatchRecord, error) {
	records, idx, err := readTable(r, BatchColumns)
	if err != nil {
		return nil, err
	}

	batches := make([]model.BatchRecord, 0, len(records))
	for i, rec := range records {
		b, err := decodeBatch(rec, idx, loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		b.Index = i
		batches = append(batches, b)
	}
	return batches, nil
}

func decodeBatch(rec []string, idx []int, loc *time.Location) (model.BatchRecord, error) {
	b := model.BatchRecord{
		TypeName:    rec[idx[0]],
		Description: rec[idx[1]],
	}

	qty, err := parseInt(rec[idx[2]])
	if err != nil {
		return b, fmt.Errorf("%s: %w", BatchColumns[2], err)
	}
	if qty == nil {
		return b, fmt.Errorf("%s: missing value", BatchColumns[2])
	}
	if *qty < 0 {
		return b, fmt.Errorf("%s: must not be negative, got %d", BatchColumns[2], *qty)
	}
	b.Quantity = *qty

	intake, err := parseTime(rec[idx[3]], loc)
	if err != nil {
		return b, fmt.Errorf("%s: %w", BatchColumns[3], err)
	}
	release, err := parseTime(rec[idx[4]], loc)
	if err != nil {
		return b, fmt.Errorf("%s: %w", BatchColumns[4], err)
	}
	if intake == nil || release == nil {
		return b, fmt.Errorf("%s and %s are required", BatchColumns[3], BatchColumns[4])
	}
	b.IntakeAt, b.ReleaseAt = *intake, *release

	if b.WithdrawnAt, err = parseTime(rec[idx[5]], loc); err != nil {
		return b, fmt.Errorf("%s: %w", BatchColumns[5], err)
	}
	if b.WithdrawnQuantity, err = parseInt(rec[idx[6]]); err != nil {
		return b, fmt.Errorf("%s: %w", BatchColumns[6], err)
	}
	if b.WithdrawalHumidity, err = parseInt(rec[idx[7]]); err != nil {
		return b, fmt.Errorf("%s: %w", BatchColumns[7], err)
	}

	if b.WithdrawnAt == nil && (b.WithdrawnQuantity != nil || b.WithdrawalHumidity != nil) {
		return b, fmt.Errorf("%s and %s require %s", BatchColumns[6], BatchColumns[7], BatchColumns[5])
	}
	if q := b.WithdrawnQuantity; q != nil && *q < 1 {
		return b, fmt.Errorf("%s: must be at least 1, got %d", BatchColumns[6], *q)
	}
	if h := b.WithdrawalHumidity; h != nil && (*h < 0 || *h > 100) {
		return b, fmt.Errorf("%s: must be between 0 and 100, got %d", BatchColumns[7], *h)
	}
	return b, nil
}

// readTable reads all records and maps each wanted column to its position in
// the header. Column order in the file does not matter; extra columns are ignored.
func readTable(r io.Reader, columns []string) ([][]string, []int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("missing header row")
	}

	header := records[0]
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	idx := make([]int, len(columns))
	for i, c := range columns {
		p, ok := pos[c]
		if !ok {
			return nil, nil, fmt.Errorf("header mismatch: missing column %q (got %v)", c, header)
		}
		idx[i] = p
	}

	rows := records[1:]
	for i, rec := range rows {
		for _, p := range idx {
			if p >= len(rec) {
				return nil, nil, fmt.Errorf("row %d: expected at least %d columns, got %d", i+2, p+1, len(rec))
			}
		}
	}
	return rows, idx, nil
}

func isNull(s string) bool {
	switch s {
	case "", "NaN", "NaT", "None", "nan":
		return true
	}
	return false
}

// parseInt parses an optional integer cell. Float spellings of whole numbers
// ("4.0") are accepted because NaN-mixed columns are written that way.
func parseInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if isNull(s) {
		return nil, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	n := int(f)
	return &n, nil
}

func parseTime(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if isNull(s) {
		return nil, nil
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("not a timestamp: %q", s)
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	local := t.In(loc)
	naive := local.Format(TimeLayout)
	if back, err := time.ParseInLocation(TimeLayout, naive, loc); err != nil || !back.Equal(t.Truncate(time.Microsecond)) {
		return local.Format(offsetLayout)
	}
	return naive
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
