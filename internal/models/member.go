package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Member represents a user profile. IdentityHash is an opaque stable hash
// of the platform account identifier, so the raw identifier never leaves
// the device.
type Member struct {
	ID           string
	DisplayName  string
	IdentityHash string
	CreatedAt    time.Time

	SyncMetadata
}

// NewMember creates a member profile for the given external identity.
func NewMember(displayName, externalID string) *Member {
	return &Member{
		ID:           uuid.NewString(),
		DisplayName:  displayName,
		IdentityHash: IdentityHash(externalID),
		CreatedAt:    time.Now().UTC(),
		SyncMetadata: SyncMetadata{NeedsSync: true},
	}
}

// IdentityHash derives the stable opaque hash for an external account
// identifier.
func IdentityHash(externalID string) string {
	sum := sha256.Sum256([]byte(externalID))
	return hex.EncodeToString(sum[:])
}
