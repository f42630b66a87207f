package errors

import pkgErrors "github.com/vogiaan1904/ticketbottle-admission/pkg/errors"

var (
	ErrEntryNotFound  = pkgErrors.NewBusinessError("ENTRY_NOT_FOUND", "queue entry not found")
	ErrAlreadyEntered = pkgErrors.NewBusinessError("ALREADY_ENTERED", "queue entry already entered")
	ErrAlreadyExpired = pkgErrors.NewBusinessError("ALREADY_EXPIRED", "queue entry already expired")
	ErrNotWaiting     = pkgErrors.NewBusinessError("NOT_WAITING", "queue entry is not waiting")
	ErrNotEntered     = pkgErrors.NewBusinessError("NOT_ENTERED", "queue entry is not entered")
)
