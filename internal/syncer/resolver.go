// Package syncer reconciles the local store with the remote record store:
// it resolves conflicts between two copies of the same entity and drives
// the push-pending / pull-changes cycle.
package syncer

import (
	"time"

	"tribeboard/internal/cloud"
	"tribeboard/internal/models"
)

// remoteWins applies the last-write-wins policy. The remote record's
// server-assigned modification time is compared against the local entity's
// last reconciliation time. A never-synced local copy (zero time) loses to
// the remote. Exactly equal timestamps favor the local copy, so the device
// actively reconciling does not oscillate. Extreme timestamps are ordinary
// values here.
func remoteWins(localLastSync, remoteModified time.Time) bool {
	if localLastSync.IsZero() {
		return true
	}
	return remoteModified.After(localLastSync)
}

// ResolveFamily decides between a local family and its remote record.
// Whole-record replacement: the winner's field values are taken in full,
// the identity is preserved. NeedsSync is cleared only when the remote copy
// was authoritative; a winning dirty local copy still owes a round trip.
func ResolveFamily(local *models.Family, record cloud.Record) (*models.Family, error) {
	remote, err := cloud.FamilyFromRecord(record)
	if err != nil {
		return nil, err
	}
	if local == nil || remoteWins(local.LastSyncAt, record.ModifiedAt) {
		if local != nil {
			remote.ID = local.ID
		}
		return remote, nil
	}
	return local, nil
}

// ResolveMember decides between a local member and its remote record.
func ResolveMember(local *models.Member, record cloud.Record) (*models.Member, error) {
	remote, err := cloud.MemberFromRecord(record)
	if err != nil {
		return nil, err
	}
	if local == nil || remoteWins(local.LastSyncAt, record.ModifiedAt) {
		if local != nil {
			remote.ID = local.ID
		}
		return remote, nil
	}
	return local, nil
}

// ResolveMembership decides between a local membership and its remote
// record.
func ResolveMembership(local *models.Membership, record cloud.Record) (*models.Membership, error) {
	remote, err := cloud.MembershipFromRecord(record)
	if err != nil {
		return nil, err
	}
	if local == nil || remoteWins(local.LastSyncAt, record.ModifiedAt) {
		if local != nil {
			remote.ID = local.ID
		}
		return remote, nil
	}
	return local, nil
}
