package reservation

import "errors"

var (
	ErrRestaurantNotFound   = errors.New("restaurant not found")
	ErrNoSuchSlot           = errors.New("no availability slot for this time")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrInvalidPartySize     = errors.New("party size must be positive")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrAlreadyCancelled     = errors.New("reservation already cancelled")
	ErrNotOwner             = errors.New("reservation belongs to another user")
)
