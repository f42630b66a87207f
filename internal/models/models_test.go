package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusesBefore(t *testing.T) {
	assert.ElementsMatch(t,
		[]EventStatus{EventStatusReady, EventStatusPreOpen, EventStatusPreClosed, EventStatusQueueReady},
		StatusesBefore(EventStatusOpen),
	)
	assert.Empty(t, StatusesBefore(EventStatusReady))
}

func TestEventStatusRankIsStrictlyIncreasing(t *testing.T) {
	order := []EventStatus{
		EventStatusReady, EventStatusPreOpen, EventStatusPreClosed,
		EventStatusQueueReady, EventStatusOpen, EventStatusClosed,
	}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i].Rank(), order[i-1].Rank())
	}
}

func TestQueueEntryIsOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	overdue := &QueueEntry{Status: QueueEntryStatusEntered, ExpiresAt: &past}
	assert.True(t, overdue.IsOverdue(now))

	inside := &QueueEntry{Status: QueueEntryStatusEntered, ExpiresAt: &future}
	assert.False(t, inside.IsOverdue(now))

	// Exactly at the deadline is not past it.
	atDeadline := &QueueEntry{Status: QueueEntryStatusEntered, ExpiresAt: &now}
	assert.False(t, atDeadline.IsOverdue(now))

	// Non-ENTERED entries are never overdue, deadline or not.
	waiting := &QueueEntry{Status: QueueEntryStatusWaiting, ExpiresAt: &past}
	assert.False(t, waiting.IsOverdue(now))
	completed := &QueueEntry{Status: QueueEntryStatusCompleted, ExpiresAt: &past}
	assert.False(t, completed.IsOverdue(now))
}

func TestEventHasFutureTransition(t *testing.T) {
	now := time.Now()

	done := &Event{
		PreOpenAt:     now.Add(-4 * time.Hour),
		PreCloseAt:    now.Add(-3 * time.Hour),
		TicketOpenAt:  now.Add(-2 * time.Hour),
		TicketCloseAt: now.Add(-1 * time.Hour),
	}
	assert.False(t, done.HasFutureTransition(now))

	closing := &Event{
		PreOpenAt:     now.Add(-4 * time.Hour),
		PreCloseAt:    now.Add(-3 * time.Hour),
		TicketOpenAt:  now.Add(-2 * time.Hour),
		TicketCloseAt: now.Add(1 * time.Hour),
	}
	assert.True(t, closing.HasFutureTransition(now))
}
