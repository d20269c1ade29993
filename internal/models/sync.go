package models

import "time"

// SyncMetadata tracks the reconciliation state of an entity against the
// remote record store. NeedsSync means the local copy is authoritative and
// has not been confirmed on the remote. RemoteRecordID is empty until a
// remote write has been confirmed. LastSyncAt is the zero time until the
// first successful reconciliation.
type SyncMetadata struct {
	NeedsSync      bool
	RemoteRecordID string
	LastSyncAt     time.Time
}

// MarkSynced records a confirmed remote write.
func (m *SyncMetadata) MarkSynced(recordID string, at time.Time) {
	m.NeedsSync = false
	m.RemoteRecordID = recordID
	m.LastSyncAt = at
}

// MarkDirty flags the local copy as changed and awaiting a push.
func (m *SyncMetadata) MarkDirty() {
	m.NeedsSync = true
}

// EverSynced reports whether the entity has ever been reconciled with the
// remote store.
func (m *SyncMetadata) EverSynced() bool {
	return !m.LastSyncAt.IsZero()
}
