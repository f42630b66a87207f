package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "AVAILABLE"
	SeatStatusReserved  SeatStatus = "RESERVED"
	SeatStatusSold      SeatStatus = "SOLD"
)

// Seat is a single sellable inventory unit. Status cycles
// AVAILABLE -> RESERVED -> SOLD (or back to AVAILABLE on release) and
// is mutated only through conditional updates, never read-modify-write.
type Seat struct {
	ID         string          `db:"id" json:"id"`
	EventID    string          `db:"event_id" json:"event_id"`
	Code       string          `db:"code" json:"code"`
	Grade      string          `db:"grade" json:"grade"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Status     SeatStatus      `db:"status" json:"status"`
	ReservedBy string          `db:"reserved_by" json:"reserved_by,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

func (s *Seat) TableName() string {
	return "seats"
}

func (s *Seat) IsAvailable() bool {
	return s.Status == SeatStatusAvailable
}
