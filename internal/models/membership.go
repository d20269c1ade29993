package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's role within a family.
type Role string

const (
	RoleOwnerAdmin Role = "owner_admin"
	RoleAdult      Role = "adult"
	RoleMinor      Role = "minor"
	RoleVisitor    Role = "visitor"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwnerAdmin, RoleAdult, RoleMinor, RoleVisitor:
		return true
	}
	return false
}

// MembershipStatus is the lifecycle state of a membership. Memberships are
// never hard-deleted; removal is a status transition.
type MembershipStatus string

const (
	StatusActive  MembershipStatus = "active"
	StatusRemoved MembershipStatus = "removed"
)

// Valid reports whether the status is one of the known statuses.
func (s MembershipStatus) Valid() bool {
	return s == StatusActive || s == StatusRemoved
}

// Membership links one Member to one Family with a role. At most one
// active membership may exist per (family, member) pair, and at most one
// active owner_admin membership per family.
type Membership struct {
	ID       string
	FamilyID string
	MemberID string
	Role     Role
	Status   MembershipStatus
	JoinedAt time.Time

	SyncMetadata
}

// NewMembership creates an active membership linking member to family.
func NewMembership(familyID, memberID string, role Role) *Membership {
	return &Membership{
		ID:           uuid.NewString(),
		FamilyID:     familyID,
		MemberID:     memberID,
		Role:         role,
		Status:       StatusActive,
		JoinedAt:     time.Now().UTC(),
		SyncMetadata: SyncMetadata{NeedsSync: true},
	}
}

// Active reports whether the membership is currently active.
func (m *Membership) Active() bool {
	return m.Status == StatusActive
}
