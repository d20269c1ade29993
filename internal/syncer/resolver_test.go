package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribeboard/internal/cloud"
	"tribeboard/internal/models"
)

func familyRecordAt(family *models.Family, modified time.Time) cloud.Record {
	record := cloud.FamilyRecord(family)
	record.ModifiedAt = modified
	return record
}

func TestRemoteWins(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		localLastSync  time.Time
		remoteModified time.Time
		want           bool
	}{
		{
			name:           "remote newer wins",
			localLastSync:  now.Add(-time.Hour),
			remoteModified: now,
			want:           true,
		},
		{
			name:           "never synced local loses",
			localLastSync:  time.Time{},
			remoteModified: now.Add(-24 * time.Hour),
			want:           true,
		},
		{
			name:           "local newer wins",
			localLastSync:  now,
			remoteModified: now.Add(-time.Hour),
			want:           false,
		},
		{
			name:           "equal timestamps favor local",
			localLastSync:  now,
			remoteModified: now,
			want:           false,
		},
		{
			name:           "distant past local loses",
			localLastSync:  time.Unix(-62135596800, 0), // year 1
			remoteModified: now,
			want:           true,
		},
		{
			name:           "distant future local wins",
			localLastSync:  now.AddDate(1000, 0, 0),
			remoteModified: now,
			want:           false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := remoteWins(tt.localLastSync, tt.remoteModified)
			assert.Equal(t, tt.want, got)

			// Determinism: the same inputs always produce the same winner.
			for i := 0; i < 3; i++ {
				assert.Equal(t, got, remoteWins(tt.localLastSync, tt.remoteModified))
			}
		})
	}
}

func TestResolveFamilyRemoteWinsReplacesInFull(t *testing.T) {
	now := time.Now().UTC()

	local := models.NewFamily("Old Name", "ABC123", "creator-1")
	local.LastSyncAt = now.Add(-time.Hour)
	local.NeedsSync = true

	remoteCopy := *local
	remoteCopy.Name = "New Name"
	record := familyRecordAt(&remoteCopy, now)

	resolved, err := ResolveFamily(local, record)
	require.NoError(t, err)

	assert.Equal(t, local.ID, resolved.ID, "identity is preserved")
	assert.Equal(t, "New Name", resolved.Name, "winner's fields are taken in full")
	assert.False(t, resolved.NeedsSync, "remote-authoritative result clears needsSync")
	assert.Equal(t, now, resolved.LastSyncAt)
}

func TestResolveFamilyLocalWinsStaysDirty(t *testing.T) {
	now := time.Now().UTC()

	local := models.NewFamily("Local Name", "ABC123", "creator-1")
	local.LastSyncAt = now
	local.NeedsSync = true

	remoteCopy := *local
	remoteCopy.Name = "Stale Remote Name"
	record := familyRecordAt(&remoteCopy, now.Add(-time.Hour))

	resolved, err := ResolveFamily(local, record)
	require.NoError(t, err)

	assert.Equal(t, "Local Name", resolved.Name)
	assert.True(t, resolved.NeedsSync, "a winning local write still owes a round trip")
}

func TestResolveFamilyNoLocalCopy(t *testing.T) {
	now := time.Now().UTC()
	remote := models.NewFamily("Fresh", "XYZ789", "creator-2")
	record := familyRecordAt(remote, now)

	resolved, err := ResolveFamily(nil, record)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", resolved.Name)
	assert.False(t, resolved.NeedsSync)
	assert.Equal(t, remote.ID, resolved.RemoteRecordID)
}

func TestResolveMembershipRemoteWins(t *testing.T) {
	now := time.Now().UTC()

	local := models.NewMembership("fam-1", "mem-1", models.RoleAdult)
	local.LastSyncAt = now.Add(-2 * time.Hour)

	remoteCopy := *local
	remoteCopy.Role = models.RoleOwnerAdmin
	remoteCopy.Status = models.StatusRemoved
	record := cloud.MembershipRecord(&remoteCopy)
	record.ModifiedAt = now

	resolved, err := ResolveMembership(local, record)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwnerAdmin, resolved.Role)
	assert.Equal(t, models.StatusRemoved, resolved.Status)
}

func TestResolveRejectsMalformedRecord(t *testing.T) {
	record := cloud.Record{ID: "rec-1", Kind: cloud.RecordKindFamily, Fields: map[string]interface{}{}}
	_, err := ResolveFamily(nil, record)
	assert.Error(t, err)
}
