package model

import "time"

// TypeDefinition is a registered tube type and the time it must spend in the oven.
type TypeDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CureHours   int    `json:"cure_hours"`
}

// CureDuration returns the cure time as a duration.
func (t TypeDefinition) CureDuration() time.Duration {
	return time.Duration(t.CureHours) * time.Hour
}

// BatchRecord is one oven intake. The withdrawal fields stay nil until the batch
// is withdrawn.
type BatchRecord struct {
	Index              int        `json:"index"`
	TypeName           string     `json:"type_name"`
	Description        string     `json:"description"`
	Quantity           int        `json:"quantity"`
	IntakeAt           time.Time  `json:"intake_at"`
	ReleaseAt          time.Time  `json:"release_at"`
	WithdrawnAt        *time.Time `json:"withdrawn_at,omitempty"`
	WithdrawnQuantity  *int       `json:"withdrawn_quantity,omitempty"`
	WithdrawalHumidity *int       `json:"withdrawal_humidity,omitempty"`
}

// Batch states.
const (
	BatchStateOpen   = "open"
	BatchStateClosed = "closed"
)

// Open reports whether the batch has not been withdrawn yet.
func (b BatchRecord) Open() bool {
	return b.WithdrawnAt == nil
}

// State returns BatchStateOpen or BatchStateClosed.
func (b BatchRecord) State() string {
	if b.Open() {
		return BatchStateOpen
	}
	return BatchStateClosed
}

// ReleasedAt reports whether the cure time has elapsed at t.
func (b BatchRecord) ReleasedAt(t time.Time) bool {
	return !t.Before(b.ReleaseAt)
}

// Clone returns a copy that shares no pointers with b.
func (b BatchRecord) Clone() BatchRecord {
	c := b
	if b.WithdrawnAt != nil {
		t := *b.WithdrawnAt
		c.WithdrawnAt = &t
	}
	if b.WithdrawnQuantity != nil {
		q := *b.WithdrawnQuantity
		c.WithdrawnQuantity = &q
	}
	if b.WithdrawalHumidity != nil {
		h := *b.WithdrawalHumidity
		c.WithdrawalHumidity = &h
	}
	return c
}
