package syncer

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"tribeboard/internal/cloud"
	"tribeboard/internal/database"
	"tribeboard/internal/errs"
)

// Report summarizes one pass over the pending set.
type Report struct {
	// Synced counts entities confirmed on the remote store this pass.
	Synced int

	// Skipped counts entities left pending after a retryable error, or
	// all pending entities when offline mode short-circuits the pass.
	Skipped int

	// Failed collects non-retryable errors. The local copies stay intact.
	Failed []error
}

// Manager tracks the offline override and drives the push/pull cycle. The
// pending set is derived, not tracked: it is whatever the local store holds
// with needsSync set, so re-running a pass over an already-synced entity is
// a no-op.
type Manager struct {
	store   *database.DB
	client  *cloud.Client
	offline atomic.Bool
}

// NewManager creates a sync manager over the local store and cloud client.
func NewManager(store *database.DB, client *cloud.Client) *Manager {
	return &Manager{store: store, client: client}
}

// SetOfflineMode flips the explicit offline override. Entering offline mode
// short-circuits all push and pull attempts; operations that would sync
// simply queue.
func (m *Manager) SetOfflineMode(offline bool) {
	m.offline.Store(offline)
}

// OfflineMode reports the explicit offline override.
func (m *Manager) OfflineMode() bool {
	return m.offline.Load()
}

// SyncPendingRecords pushes every entity with needsSync set. Success marks
// the entity synced with the server-assigned record ID and modification
// time. Retryable errors leave the entity pending for a later pass;
// non-retryable errors are surfaced in the report with the local copy left
// untouched.
func (m *Manager) SyncPendingRecords(ctx context.Context) (Report, error) {
	var report Report

	families, err := m.store.PendingFamilies(ctx)
	if err != nil {
		return report, fmt.Errorf("loading pending families: %w", err)
	}
	members, err := m.store.PendingMembers(ctx)
	if err != nil {
		return report, fmt.Errorf("loading pending members: %w", err)
	}
	memberships, err := m.store.PendingMemberships(ctx)
	if err != nil {
		return report, fmt.Errorf("loading pending memberships: %w", err)
	}

	if m.OfflineMode() {
		report.Skipped = len(families) + len(members) + len(memberships)
		return report, nil
	}

	for i := range families {
		family := &families[i]
		saved, err := m.client.SaveFamily(ctx, family)
		if !m.settle(&report, err, "family", family.ID) {
			continue
		}
		family.MarkSynced(saved.ID, saved.ModifiedAt)
		if err := m.store.UpdateFamily(ctx, family); err != nil {
			return report, fmt.Errorf("recording family sync state: %w", err)
		}
		report.Synced++
	}

	for i := range members {
		member := &members[i]
		saved, err := m.client.SaveMember(ctx, member)
		if !m.settle(&report, err, "member", member.ID) {
			continue
		}
		member.MarkSynced(saved.ID, saved.ModifiedAt)
		if err := m.store.UpdateMember(ctx, member); err != nil {
			return report, fmt.Errorf("recording member sync state: %w", err)
		}
		report.Synced++
	}

	for i := range memberships {
		membership := &memberships[i]
		saved, err := m.client.SaveMembership(ctx, membership)
		if !m.settle(&report, err, "membership", membership.ID) {
			continue
		}
		membership.MarkSynced(saved.ID, saved.ModifiedAt)
		if err := m.store.UpdateMembership(ctx, membership); err != nil {
			return report, fmt.Errorf("recording membership sync state: %w", err)
		}
		report.Synced++
	}

	return report, nil
}

// settle folds one save result into the report. Returns true when the save
// succeeded and the caller should mark the entity synced.
func (m *Manager) settle(report *Report, err error, kind, id string) bool {
	if err == nil {
		return true
	}
	if errs.Retryable(err) {
		log.Printf("sync: %s %s left pending: %v", kind, id, err)
		report.Skipped++
		return false
	}
	report.Failed = append(report.Failed, fmt.Errorf("%s %s: %w", kind, id, err))
	return false
}

// HandleNotification is the push-triggered pull path. Malformed payloads
// are logged and dropped; a missing remote record is a no-op. The fetched
// record is resolved against the local copy and the winner is written back.
func (m *Manager) HandleNotification(ctx context.Context, payload map[string]interface{}) error {
	notification, ok := cloud.ParseNotification(payload)
	if !ok {
		log.Printf("sync: dropping malformed notification payload")
		return nil
	}
	if m.OfflineMode() {
		return nil
	}

	record, found, err := m.client.RecordByID(ctx, notification.RecordID)
	if err != nil {
		return fmt.Errorf("fetching record %s: %w", notification.RecordID, err)
	}
	if !found {
		return nil
	}

	switch record.Kind {
	case cloud.RecordKindFamily:
		return m.pullFamily(ctx, record)
	case cloud.RecordKindMember:
		return m.pullMember(ctx, record)
	case cloud.RecordKindMembership:
		return m.pullMembership(ctx, record)
	default:
		log.Printf("sync: ignoring record %s with unknown kind %q", record.ID, record.Kind)
		return nil
	}
}

func (m *Manager) pullFamily(ctx context.Context, record cloud.Record) error {
	local, err := m.store.FamilyByID(ctx, record.ID)
	if err != nil {
		return err
	}
	resolved, err := ResolveFamily(local, record)
	if err != nil {
		return err
	}
	if local == nil {
		return m.store.InsertFamily(ctx, resolved)
	}
	return m.store.UpdateFamily(ctx, resolved)
}

func (m *Manager) pullMember(ctx context.Context, record cloud.Record) error {
	local, err := m.store.MemberByID(ctx, record.ID)
	if err != nil {
		return err
	}
	resolved, err := ResolveMember(local, record)
	if err != nil {
		return err
	}
	if local == nil {
		return m.store.InsertMember(ctx, resolved)
	}
	return m.store.UpdateMember(ctx, resolved)
}

func (m *Manager) pullMembership(ctx context.Context, record cloud.Record) error {
	local, err := m.store.MembershipByID(ctx, record.ID)
	if err != nil {
		return err
	}
	resolved, err := ResolveMembership(local, record)
	if err != nil {
		return err
	}
	if local == nil {
		return m.store.InsertMembership(ctx, resolved)
	}
	return m.store.UpdateMembership(ctx, resolved)
}

// PendingCount reports how many entities currently await sync. Exposed for
// callers that surface a "will sync later" indicator.
func (m *Manager) PendingCount(ctx context.Context) (int, error) {
	families, err := m.store.PendingFamilies(ctx)
	if err != nil {
		return 0, err
	}
	members, err := m.store.PendingMembers(ctx)
	if err != nil {
		return 0, err
	}
	memberships, err := m.store.PendingMemberships(ctx)
	if err != nil {
		return 0, err
	}
	return len(families) + len(members) + len(memberships), nil
}
