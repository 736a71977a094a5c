package domain

import "errors"

// Request rejections. Their messages are sent verbatim to the requester.
var (
	ErrSeatUnavailable = errors.New("Seat not available")
	ErrAlreadyJoined   = errors.New("Already joined, use move")
	ErrNotJoined       = errors.New("Join a seat first")
	ErrNameEmpty       = errors.New("Name is required")
	ErrNameTooLong     = errors.New("Name is too long")
	ErrRateLimited     = errors.New("Too many messages, slow down")
	ErrRoomNameTooLong = errors.New("Room name is too long")
)
