package errors

import pkgErrors "github.com/vogiaan1904/ticketbottle-admission/pkg/errors"

var (
	ErrEventNotFound       = pkgErrors.NewBusinessError("EVENT_NOT_FOUND", "event not found")
	ErrReservationNotFound = pkgErrors.NewBusinessError("RESERVATION_NOT_FOUND", "draft reservation not found")

	ErrConcurrencyConflict = pkgErrors.NewBusinessError("CONCURRENCY_CONFLICT", "lost a concurrent update race, try again")
	ErrUnauthorized        = pkgErrors.NewBusinessError("UNAUTHORIZED", "resource belongs to another user")
	ErrLockNotAcquired     = pkgErrors.NewBusinessError("LOCK_NOT_ACQUIRED", "another instance holds the lock")
	ErrPaymentFailed       = pkgErrors.NewBusinessError("PAYMENT_FAILED", "payment was not confirmed")
)
