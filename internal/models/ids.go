package models

import "github.com/google/uuid"

// NewID returns a new opaque identifier. Version 7 UUIDs sort by creation
// time, which keeps ID tie-breaks consistent with created_at ordering.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
