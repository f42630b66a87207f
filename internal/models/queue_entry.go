package models

import "time"

type QueueEntryStatus string

const (
	QueueEntryStatusWaiting   QueueEntryStatus = "WAITING"
	QueueEntryStatusEntered   QueueEntryStatus = "ENTERED"
	QueueEntryStatusExpired   QueueEntryStatus = "EXPIRED"
	QueueEntryStatusCompleted QueueEntryStatus = "COMPLETED"
)

// QueueEntry is one user's position in an event's admission queue.
// Exactly one entry exists per (event, user); ranks assigned at shuffle
// form a permutation of 1..N.
type QueueEntry struct {
	ID        string           `db:"id" json:"id"`
	EventID   string           `db:"event_id" json:"event_id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Rank      int              `db:"rank" json:"rank"`
	Status    QueueEntryStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	EnteredAt *time.Time       `db:"entered_at" json:"entered_at,omitempty"`
	ExpiresAt *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
}

func (e *QueueEntry) TableName() string {
	return "queue_entries"
}

func (e *QueueEntry) IsWaiting() bool {
	return e.Status == QueueEntryStatusWaiting
}

func (e *QueueEntry) IsEntered() bool {
	return e.Status == QueueEntryStatusEntered
}

func (e *QueueEntry) IsTerminal() bool {
	return e.Status == QueueEntryStatusExpired || e.Status == QueueEntryStatusCompleted
}

// IsOverdue reports whether the entry window has elapsed. Only
// meaningful for ENTERED entries.
func (e *QueueEntry) IsOverdue(now time.Time) bool {
	return e.IsEntered() && e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}
