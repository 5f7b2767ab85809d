// Package export writes the batch ledger as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/tubetes/internal/flatfile"
	"github.com/erazemk/tubetes/internal/model"
	"github.com/erazemk/tubetes/internal/report"
)

// Sheet names.
const (
	LedgerSheet  = "Inventario"
	SummarySheet = "Resumo"
)

// SummaryColumns are the headers of the summary sheet.
var SummaryColumns = []string{
	"Tipo", "Tempo Estufa (h)", "Lotes Abertos", "Lotes Prontos",
	"Quantidade na Estufa", "Quantidade Retirada", "Umidade Media",
}

const dateFormat = "yyyy-mm-dd hh:mm:ss"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX writes a workbook with the full ledger and the per-type summary.
// Timestamps are written as spreadsheet dates holding their wall-clock time in loc.
func WriteXLSX(w io.Writer, batches []model.BatchRecord, rep report.Report, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", LedgerSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}

	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr(dateFormat)})
	if err != nil {
		return fmt.Errorf("creating date style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := writeLedger(f, batches, loc, headerStyle, dateStyle); err != nil {
		return err
	}
	if err := writeSummary(f, rep, headerStyle); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeLedger(f *excelize.File, batches []model.BatchRecord, loc *time.Location, headerStyle, dateStyle int) error {
	if err := writeHeader(f, LedgerSheet, flatfile.BatchColumns, headerStyle); err != nil {
		return err
	}

	for i, b := range batches {
		row := i + 2
		values := []any{
			b.TypeName,
			b.Description,
			b.Quantity,
			wallClock(&b.IntakeAt, loc),
			wallClock(&b.ReleaseAt, loc),
			wallClock(b.WithdrawnAt, loc),
			intOrNil(b.WithdrawnQuantity),
			intOrNil(b.WithdrawalHumidity),
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(LedgerSheet, cell, v); err != nil {
				return fmt.Errorf("writing cell %s: %w", cell, err)
			}
			if _, ok := v.(time.Time); ok {
				if err := f.SetCellStyle(LedgerSheet, cell, cell, dateStyle); err != nil {
					return fmt.Errorf("styling cell %s: %w", cell, err)
				}
			}
		}
	}

	if err := f.SetColWidth(LedgerSheet, "A", "B", 24); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}
	if err := f.SetColWidth(LedgerSheet, "D", "F", 20); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}
	return freezeHeader(f, LedgerSheet)
}

func writeSummary(f *excelize.File, rep report.Report, headerStyle int) error {
	if err := writeHeader(f, SummarySheet, SummaryColumns, headerStyle); err != nil {
		return err
	}

	for i, s := range rep.Types {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var humidity any
		if s.MeanHumidity != nil {
			humidity = s.MeanHumidity.InexactFloat64()
		}
		row := []any{
			s.TypeName, s.CureHours, s.OpenBatches, s.ReadyBatches,
			s.QuantityInOven, s.WithdrawnQuantity, humidity,
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SummarySheet, "A", "A", 24); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}
	return freezeHeader(f, SummarySheet)
}

func writeHeader(f *excelize.File, sheet string, columns []string, style int) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	return nil
}

func freezeHeader(f *excelize.File, sheet string) error {
	err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	if err != nil {
		return fmt.Errorf("freezing %s header: %w", sheet, err)
	}
	return nil
}

// wallClock returns t's wall-clock time in loc as a UTC time, which is how
// spreadsheet dates without a zone are stored. Nil stays nil.
func wallClock(t *time.Time, loc *time.Location) any {
	if t == nil {
		return nil
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), 0, time.UTC)
}

func intOrNil(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func ptr[T any](v T) *T { return &v }
