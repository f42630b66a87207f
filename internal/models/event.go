package models

import "time"

type EventStatus string

const (
	EventStatusReady      EventStatus = "READY"
	EventStatusPreOpen    EventStatus = "PRE_OPEN"
	EventStatusPreClosed  EventStatus = "PRE_CLOSED"
	EventStatusQueueReady EventStatus = "QUEUE_READY"
	EventStatusOpen       EventStatus = "OPEN"
	EventStatusClosed     EventStatus = "CLOSED"
)

// eventStatusRank orders the lifecycle. Status only ever moves to a
// higher rank; the scheduler enforces this with a conditional update.
var eventStatusRank = map[EventStatus]int{
	EventStatusReady:      0,
	EventStatusPreOpen:    1,
	EventStatusPreClosed:  2,
	EventStatusQueueReady: 3,
	EventStatusOpen:       4,
	EventStatusClosed:     5,
}

func (s EventStatus) Rank() int {
	return eventStatusRank[s]
}

// StatusesBefore returns every status with a strictly lower rank than s.
// Used as the WHERE predicate of the monotonic status advance.
func StatusesBefore(s EventStatus) []EventStatus {
	out := make([]EventStatus, 0, len(eventStatusRank))
	for st, rank := range eventStatusRank {
		if rank < s.Rank() {
			out = append(out, st)
		}
	}
	return out
}

type Event struct {
	ID            string      `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	Status        EventStatus `db:"status" json:"status"`
	PreOpenAt     time.Time   `db:"pre_open_at" json:"pre_open_at"`
	PreCloseAt    time.Time   `db:"pre_close_at" json:"pre_close_at"`
	TicketOpenAt  time.Time   `db:"ticket_open_at" json:"ticket_open_at"`
	TicketCloseAt time.Time   `db:"ticket_close_at" json:"ticket_close_at"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

func (e *Event) TableName() string {
	return "events"
}

func (e *Event) IsOpen() bool {
	return e.Status == EventStatusOpen
}

// HasFutureTransition reports whether any lifecycle instant is still
// ahead of now, meaning the event needs timers registered.
func (e *Event) HasFutureTransition(now time.Time) bool {
	for _, t := range []time.Time{e.PreOpenAt, e.PreCloseAt, e.TicketOpenAt, e.TicketCloseAt} {
		if t.After(now) {
			return true
		}
	}
	return false
}
