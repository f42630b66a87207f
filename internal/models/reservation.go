package models

import "time"

// DraftReservation links a user to the seat they are holding for an
// event before payment. At most one exists per (event, user); SeatID
// is empty while no seat is held.
type DraftReservation struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	SeatID    string    `db:"seat_id" json:"seat_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (r *DraftReservation) TableName() string {
	return "draft_reservations"
}

func (r *DraftReservation) HasSeat() bool {
	return r.SeatID != ""
}
