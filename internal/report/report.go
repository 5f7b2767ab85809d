// Package report summarizes the batch ledger per tube type.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/tubetes/internal/model"
)

// TypeSummary aggregates the batches of one tube type.
type TypeSummary struct {
	TypeName          string `json:"type_name"`
	CureHours         int    `json:"cure_hours"`
	OpenBatches       int    `json:"open_batches"`
	ReadyBatches      int    `json:"ready_batches"`
	QuantityInOven    int    `json:"quantity_in_oven"`
	WithdrawnQuantity int    `json:"withdrawn_quantity"`
	Withdrawals       int    `json:"withdrawals"`
	// MeanHumidity is the mean withdrawal humidity, rounded to one decimal.
	// It is nil when nothing has been withdrawn.
	MeanHumidity *decimal.Decimal `json:"mean_humidity,omitempty"`
}

// Totals are the dashboard figures.
type Totals struct {
	Types         int `json:"types"`
	OpenBatches   int `json:"open_batches"`
	ReadyBatches  int `json:"ready_batches"`
	TotalQuantity int `json:"total_quantity"`
}

// Report is a point-in-time summary of the ledger.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Totals      Totals        `json:"totals"`
	Types       []TypeSummary `json:"types"`
}

// Summarize builds a report. Types appear in catalog order, followed by any
// type names that only occur in the ledger. Ready batches are open batches
// whose release time has passed at now.
func Summarize(types []model.TypeDefinition, batches []model.BatchRecord, now time.Time) Report {
	r := Report{GeneratedAt: now, Totals: Totals{Types: len(types)}}

	pos := make(map[string]int)
	humidity := make(map[string]decimal.Decimal)
	for _, t := range types {
		if _, seen := pos[t.Name]; seen {
			continue
		}
		pos[t.Name] = len(r.Types)
		r.Types = append(r.Types, TypeSummary{TypeName: t.Name, CureHours: t.CureHours})
	}

	for _, b := range batches {
		i, ok := pos[b.TypeName]
		if !ok {
			i = len(r.Types)
			pos[b.TypeName] = i
			r.Types = append(r.Types, TypeSummary{TypeName: b.TypeName})
		}
		s := &r.Types[i]

		r.Totals.TotalQuantity += b.Quantity
		if b.Open() {
			s.OpenBatches++
			s.QuantityInOven += b.Quantity
			r.Totals.OpenBatches++
			if b.ReleasedAt(now) {
				s.ReadyBatches++
				r.Totals.ReadyBatches++
			}
			continue
		}

		if b.WithdrawnQuantity != nil {
			s.WithdrawnQuantity += *b.WithdrawnQuantity
		}
		if b.WithdrawalHumidity != nil {
			s.Withdrawals++
			humidity[b.TypeName] = humidity[b.TypeName].Add(decimal.NewFromInt(int64(*b.WithdrawalHumidity)))
		}
	}

	for i := range r.Types {
		s := &r.Types[i]
		if s.Withdrawals == 0 {
			continue
		}
		mean := humidity[s.TypeName].Div(decimal.NewFromInt(int64(s.Withdrawals))).Round(1)
		s.MeanHumidity = &mean
	}
	return r
}
