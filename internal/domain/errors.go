package domain

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidRoomID        = errors.New("invalid room id")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrUnknownOccurrence    = errors.New("unknown occurrence kind")
	ErrQueueOverflow        = errors.New("outbound queue overflow")
)
