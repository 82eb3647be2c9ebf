package models

import "github.com/google/uuid"

// NewID returns a time-sortable UUIDv7, falling back to a random v4 if the
// clock source fails.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
