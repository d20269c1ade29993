package models

import (
	"time"

	"github.com/google/uuid"
)

// Family represents a shared household workspace. Code is the globally
// unique join code handed to other members.
type Family struct {
	ID        string
	Name      string
	Code      string
	CreatedBy string
	CreatedAt time.Time

	SyncMetadata
}

// NewFamily creates a family owned by the given member. The entity starts
// dirty: it exists locally and has not been confirmed on the remote store.
func NewFamily(name, code, creatorID string) *Family {
	return &Family{
		ID:           uuid.NewString(),
		Name:         name,
		Code:         code,
		CreatedBy:    creatorID,
		CreatedAt:    time.Now().UTC(),
		SyncMetadata: SyncMetadata{NeedsSync: true},
	}
}
