package syncer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribeboard/internal/cloud"
	"tribeboard/internal/database"
	"tribeboard/internal/errs"
	"tribeboard/internal/models"
)

type fixture struct {
	store   *database.DB
	service *cloud.MemoryService
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "syncer_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	service := cloud.NewMemoryService()
	client := cloud.NewClient(service)
	return &fixture{
		store:   store,
		service: service,
		manager: NewManager(store, client),
	}
}

func (f *fixture) seedFamily(t *testing.T, name, code string) *models.Family {
	t.Helper()
	ctx := context.Background()

	member := models.NewMember("Owner", "ext-"+code)
	family := models.NewFamily(name, code, member.ID)
	owner := models.NewMembership(family.ID, member.ID, models.RoleOwnerAdmin)
	require.NoError(t, f.store.CreateFamily(ctx, family, member, owner))
	return family
}

func TestSyncPendingRecordsPushesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	family := f.seedFamily(t, "Mawere", "ABC123")

	report, err := f.manager.SyncPendingRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Synced, "family, member and membership should all push")
	assert.Zero(t, report.Skipped)
	assert.Empty(t, report.Failed)

	got, err := f.store.FamilyByID(ctx, family.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsSync)
	assert.NotEmpty(t, got.RemoteRecordID)
	assert.False(t, got.LastSyncAt.IsZero())

	pending, err := f.manager.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestSyncPendingRecordsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedFamily(t, "Mawere", "ABC123")

	_, err := f.manager.SyncPendingRecords(ctx)
	require.NoError(t, err)
	recordsAfterFirst := f.service.Len()

	report, err := f.manager.SyncPendingRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Synced, "second pass over synced entities is a no-op")
	assert.Equal(t, recordsAfterFirst, f.service.Len())
}

func TestOfflineModeShortCircuits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedFamily(t, "Mawere", "ABC123")

	f.manager.SetOfflineMode(true)
	assert.True(t, f.manager.OfflineMode())

	report, err := f.manager.SyncPendingRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Synced)
	assert.Equal(t, 3, report.Skipped)
	assert.Zero(t, f.service.Len(), "offline mode must not touch the network")

	// Back online, the queue drains.
	f.manager.SetOfflineMode(false)
	report, err = f.manager.SyncPendingRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Synced)
}

func TestRetryableErrorLeavesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedFamily(t, "Mawere", "ABC123")

	f.service.FailSavesWith(cloud.ErrServiceUnavailable)
	report, err := f.manager.SyncPendingRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Synced)
	assert.Equal(t, 3, report.Skipped)

	pending, err := f.manager.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pending, "retryable failures stay in the queue")

	f.service.FailSavesWith(nil)
	report, err = f.manager.SyncPendingRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Synced)
}

func TestNonRetryableErrorSurfacesButKeepsLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	family := f.seedFamily(t, "Mawere", "ABC123")

	f.service.FailSavesWith(cloud.ErrQuotaExceeded)
	report, err := f.manager.SyncPendingRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Synced)
	assert.Len(t, report.Failed, 3)
	for _, failure := range report.Failed {
		assert.Equal(t, errs.CodeQuotaExceeded, errs.CodeOf(failure))
	}

	// Local durability is never sacrificed.
	got, err := f.store.FamilyByID(ctx, family.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.NeedsSync)
}

func TestHandleNotificationMalformedIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.manager.HandleNotification(ctx, nil))
	assert.NoError(t, f.manager.HandleNotification(ctx, map[string]interface{}{"reason": "updated"}))
	assert.NoError(t, f.manager.HandleNotification(ctx, map[string]interface{}{"recordId": 99}))
}

func TestHandleNotificationInsertsNewRemoteFamily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	remote := models.NewFamily("Elsewhere", "ZZZ999", "creator-9")
	record := cloud.FamilyRecord(remote)
	f.service.Put(record)

	err := f.manager.HandleNotification(ctx, map[string]interface{}{
		"subscriptionId": "sub-1",
		"recordId":       remote.ID,
		"reason":         "created",
	})
	require.NoError(t, err)

	got, err := f.store.FamilyByID(ctx, remote.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "remote-created family should land locally")
	assert.Equal(t, "Elsewhere", got.Name)
	assert.False(t, got.NeedsSync)
}

func TestHandleNotificationResolvesConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	family := f.seedFamily(t, "Mawere", "ABC123")

	// Push so the local copy has a LastSyncAt baseline.
	_, err := f.manager.SyncPendingRecords(ctx)
	require.NoError(t, err)

	// A newer remote edit arrives.
	newer := *family
	newer.Name = "Mawere Renamed"
	record := cloud.FamilyRecord(&newer)
	record.ModifiedAt = time.Now().Add(time.Hour)
	f.service.Put(record)

	err = f.manager.HandleNotification(ctx, map[string]interface{}{
		"recordId": family.ID,
		"reason":   "updated",
	})
	require.NoError(t, err)

	got, err := f.store.FamilyByID(ctx, family.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mawere Renamed", got.Name, "newer remote edit wins")
}

func TestHandleNotificationOfflineIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	remote := models.NewFamily("Elsewhere", "ZZZ999", "creator-9")
	f.service.Put(cloud.FamilyRecord(remote))

	f.manager.SetOfflineMode(true)
	err := f.manager.HandleNotification(ctx, map[string]interface{}{
		"recordId": remote.ID,
		"reason":   "created",
	})
	require.NoError(t, err)

	got, err := f.store.FamilyByID(ctx, remote.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "offline mode suppresses the pull")
}

func TestHandleNotificationUnknownRecordIsNoOp(t *testing.T) {
	f := newFixture(t)
	err := f.manager.HandleNotification(context.Background(), map[string]interface{}{
		"recordId": "never-seen",
		"reason":   "deleted",
	})
	assert.NoError(t, err)
}
