package core

import "github.com/google/uuid"

// IDGenerator produces identifiers for tasks and ledger entries.
type IDGenerator func() string

// NewUUID returns a random (v4) UUID string.
func NewUUID() string {
	return uuid.NewString()
}
