package service

import (
	"context"
	"fmt"

	"tribeboard/internal/database"
	"tribeboard/internal/errs"
	"tribeboard/internal/models"
)

// MembershipService handles role changes and removals. Mutations are
// re-validated against the membership invariants and marked dirty so the
// sync manager pushes them on its next pass. Memberships are never
// hard-deleted; history stays available for conflict resolution and audit.
type MembershipService struct {
	store *database.DB
}

// NewMembershipService creates a membership service.
func NewMembershipService(store *database.DB) *MembershipService {
	return &MembershipService{store: store}
}

// ChangeRole updates a membership's role. Promoting a second active owner
// fails as a constraint violation; demoting the only owner is allowed and
// leaves the family ownerless until a promotion follows.
func (s *MembershipService) ChangeRole(ctx context.Context, membershipID string, role models.Role) (*models.Membership, error) {
	if !role.Valid() {
		return nil, errs.Newf(errs.CodeValidationFailed, "unknown role %q", role)
	}

	membership, err := s.store.MembershipByID(ctx, membershipID)
	if err != nil {
		return nil, fmt.Errorf("loading membership: %w", err)
	}
	if membership == nil {
		return nil, errs.Newf(errs.CodeValidationFailed, "membership %s not found", membershipID)
	}
	if !membership.Active() {
		return nil, errs.New(errs.CodeConstraintViolation, "cannot change role of a removed membership")
	}

	membership.Role = role
	membership.MarkDirty()
	if err := s.store.UpdateMembership(ctx, membership); err != nil {
		return nil, err
	}
	return membership, nil
}

// RemoveMember transitions a membership to removed. The row is kept.
func (s *MembershipService) RemoveMember(ctx context.Context, membershipID string) (*models.Membership, error) {
	membership, err := s.store.MembershipByID(ctx, membershipID)
	if err != nil {
		return nil, fmt.Errorf("loading membership: %w", err)
	}
	if membership == nil {
		return nil, errs.Newf(errs.CodeValidationFailed, "membership %s not found", membershipID)
	}
	if !membership.Active() {
		return membership, nil
	}

	membership.Status = models.StatusRemoved
	membership.MarkDirty()
	if err := s.store.UpdateMembership(ctx, membership); err != nil {
		return nil, err
	}
	return membership, nil
}

// TransferOwnership demotes the current owner to adult and promotes the
// target membership to owner. The demotion commits first so the
// single-owner index never sees two active owners.
func (s *MembershipService) TransferOwnership(ctx context.Context, familyID, toMembershipID string) (*models.Membership, error) {
	memberships, err := s.store.MembershipsByFamily(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("loading memberships: %w", err)
	}

	var current *models.Membership
	for i := range memberships {
		m := &memberships[i]
		if m.Role == models.RoleOwnerAdmin && m.Active() {
			current = m
			break
		}
	}

	if current != nil {
		if current.ID == toMembershipID {
			return current, nil
		}
		if _, err := s.ChangeRole(ctx, current.ID, models.RoleAdult); err != nil {
			return nil, err
		}
	}

	promoted, err := s.ChangeRole(ctx, toMembershipID, models.RoleOwnerAdmin)
	if err != nil && current != nil {
		// Roll the demotion back so the family keeps an owner.
		if _, rbErr := s.ChangeRole(ctx, current.ID, models.RoleOwnerAdmin); rbErr != nil {
			return nil, fmt.Errorf("promotion failed (%v) and rollback failed: %w", err, rbErr)
		}
		return nil, err
	}
	return promoted, err
}
