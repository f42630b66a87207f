package errors

import pkgErrors "github.com/vogiaan1904/ticketbottle-admission/pkg/errors"

var (
	ErrSeatNotFound        = pkgErrors.NewBusinessError("SEAT_NOT_FOUND", "seat not found")
	ErrSeatAlreadyReserved = pkgErrors.NewBusinessError("SEAT_ALREADY_RESERVED", "seat already reserved by another user")
	ErrSeatAlreadySold     = pkgErrors.NewBusinessError("SEAT_ALREADY_SOLD", "seat already sold")
	ErrSeatNotReserved     = pkgErrors.NewBusinessError("SEAT_NOT_RESERVED", "seat has no active reservation")
)
