package kafka

import "time"

// Events published BY the admission service. Consumers (notification
// service, seat-map frontends) treat them as fire-and-forget facts.

type SeatStatusChangedEvent struct {
	EventID   string    `json:"event_id"`
	SeatID    string    `json:"seat_id"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type QueueEnteredEvent struct {
	EntryID   string    `json:"entry_id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Rank      int       `json:"rank"`
	EnteredAt time.Time `json:"entered_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

type QueueExpiredEvent struct {
	EntryID   string    `json:"entry_id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type EventStatusChangedEvent struct {
	EventID   string    `json:"event_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentCompletedEvent struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	SeatID    string    `json:"seat_id"`
	OrderRef  string    `json:"order_ref"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Topic names
const (
	TopicSeatStatusChanged  = "SEAT_STATUS_CHANGED"
	TopicQueueEntered       = "QUEUE_ENTERED"
	TopicQueueExpired       = "QUEUE_EXPIRED"
	TopicEventStatusChanged = "EVENT_STATUS_CHANGED"
	TopicPaymentCompleted   = "PAYMENT_COMPLETED"
)
