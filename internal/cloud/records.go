// Package cloud wraps the remote record service: account status checks,
// zone and subscription setup, record save/fetch, and the classification
// of remote errors into the engine's taxonomy. The underlying platform
// service is injected as a RecordService; this package owns the wire
// contract mapping entities onto named record kinds.
package cloud

import (
	"fmt"
	"time"

	"tribeboard/internal/models"
)

// Record kinds on the remote store.
const (
	RecordKindFamily     = "Family"
	RecordKindMember     = "Member"
	RecordKindMembership = "Membership"
)

// Wire field names. These are a stable contract with the remote store; do
// not rename.
const (
	fieldName         = "name"
	fieldCode         = "code"
	fieldCreator      = "creatorId"
	fieldCreatedAt    = "createdAt"
	fieldDisplayName  = "displayName"
	fieldIdentityHash = "identityHash"
	fieldRole         = "role"
	fieldStatus       = "status"
	fieldJoinedAt     = "joinedAt"
	fieldFamilyRef    = "familyRef"
	fieldMemberRef    = "memberRef"
)

// Record is one remote record. ID is the record name; the client chooses
// the entity ID as the record name on first save, so notifications carry
// an ID the local store can look up directly. ModifiedAt is server-assigned.
type Record struct {
	ID         string
	Kind       string
	Fields     map[string]interface{}
	ModifiedAt time.Time
}

// FamilyRecord maps a family onto the wire contract.
func FamilyRecord(f *models.Family) Record {
	return Record{
		ID:   f.ID,
		Kind: RecordKindFamily,
		Fields: map[string]interface{}{
			fieldName:      f.Name,
			fieldCode:      f.Code,
			fieldCreator:   f.CreatedBy,
			fieldCreatedAt: f.CreatedAt,
		},
	}
}

// MemberRecord maps a member onto the wire contract.
func MemberRecord(m *models.Member) Record {
	return Record{
		ID:   m.ID,
		Kind: RecordKindMember,
		Fields: map[string]interface{}{
			fieldDisplayName:  m.DisplayName,
			fieldIdentityHash: m.IdentityHash,
			fieldCreatedAt:    m.CreatedAt,
		},
	}
}

// MembershipRecord maps a membership onto the wire contract.
func MembershipRecord(m *models.Membership) Record {
	return Record{
		ID:   m.ID,
		Kind: RecordKindMembership,
		Fields: map[string]interface{}{
			fieldRole:      string(m.Role),
			fieldStatus:    string(m.Status),
			fieldJoinedAt:  m.JoinedAt,
			fieldFamilyRef: m.FamilyID,
			fieldMemberRef: m.MemberID,
		},
	}
}

func stringField(r Record, name string) (string, error) {
	v, ok := r.Fields[name]
	if !ok {
		return "", fmt.Errorf("record %s missing field %q", r.ID, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("record %s field %q is not a string", r.ID, name)
	}
	return s, nil
}

func timeField(r Record, name string) (time.Time, error) {
	v, ok := r.Fields[name]
	if !ok {
		return time.Time{}, fmt.Errorf("record %s missing field %q", r.ID, name)
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("record %s field %q is not a timestamp", r.ID, name)
	}
	return t, nil
}

// FamilyFromRecord rebuilds a family from its remote record. The returned
// entity carries the record's sync metadata: confirmed remote, not dirty.
func FamilyFromRecord(r Record) (*models.Family, error) {
	if r.Kind != RecordKindFamily {
		return nil, fmt.Errorf("record %s has kind %q, want %q", r.ID, r.Kind, RecordKindFamily)
	}
	name, err := stringField(r, fieldName)
	if err != nil {
		return nil, err
	}
	code, err := stringField(r, fieldCode)
	if err != nil {
		return nil, err
	}
	creator, err := stringField(r, fieldCreator)
	if err != nil {
		return nil, err
	}
	createdAt, err := timeField(r, fieldCreatedAt)
	if err != nil {
		return nil, err
	}
	return &models.Family{
		ID:        r.ID,
		Name:      name,
		Code:      code,
		CreatedBy: creator,
		CreatedAt: createdAt,
		SyncMetadata: models.SyncMetadata{
			RemoteRecordID: r.ID,
			LastSyncAt:     r.ModifiedAt,
		},
	}, nil
}

// MemberFromRecord rebuilds a member from its remote record.
func MemberFromRecord(r Record) (*models.Member, error) {
	if r.Kind != RecordKindMember {
		return nil, fmt.Errorf("record %s has kind %q, want %q", r.ID, r.Kind, RecordKindMember)
	}
	displayName, err := stringField(r, fieldDisplayName)
	if err != nil {
		return nil, err
	}
	identityHash, err := stringField(r, fieldIdentityHash)
	if err != nil {
		return nil, err
	}
	createdAt, err := timeField(r, fieldCreatedAt)
	if err != nil {
		return nil, err
	}
	return &models.Member{
		ID:           r.ID,
		DisplayName:  displayName,
		IdentityHash: identityHash,
		CreatedAt:    createdAt,
		SyncMetadata: models.SyncMetadata{
			RemoteRecordID: r.ID,
			LastSyncAt:     r.ModifiedAt,
		},
	}, nil
}

// MembershipFromRecord rebuilds a membership from its remote record.
func MembershipFromRecord(r Record) (*models.Membership, error) {
	if r.Kind != RecordKindMembership {
		return nil, fmt.Errorf("record %s has kind %q, want %q", r.ID, r.Kind, RecordKindMembership)
	}
	role, err := stringField(r, fieldRole)
	if err != nil {
		return nil, err
	}
	status, err := stringField(r, fieldStatus)
	if err != nil {
		return nil, err
	}
	joinedAt, err := timeField(r, fieldJoinedAt)
	if err != nil {
		return nil, err
	}
	familyRef, err := stringField(r, fieldFamilyRef)
	if err != nil {
		return nil, err
	}
	memberRef, err := stringField(r, fieldMemberRef)
	if err != nil {
		return nil, err
	}
	return &models.Membership{
		ID:       r.ID,
		FamilyID: familyRef,
		MemberID: memberRef,
		Role:     models.Role(role),
		Status:   models.MembershipStatus(status),
		JoinedAt: joinedAt,
		SyncMetadata: models.SyncMetadata{
			RemoteRecordID: r.ID,
			LastSyncAt:     r.ModifiedAt,
		},
	}, nil
}
