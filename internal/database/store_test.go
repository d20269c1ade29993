package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tribeboard/internal/errs"
	"tribeboard/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tribeboard_test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedFamily(t *testing.T, db *DB, name, code string) (*models.Family, *models.Member) {
	t.Helper()
	ctx := context.Background()

	member := models.NewMember("Owner of "+name, "external-"+code)
	family := models.NewFamily(name, code, member.ID)
	owner := models.NewMembership(family.ID, member.ID, models.RoleOwnerAdmin)
	if err := db.CreateFamily(ctx, family, member, owner); err != nil {
		t.Fatalf("failed to create family: %v", err)
	}
	return family, member
}

func TestCreateFamilyCommitsBothRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	family, _ := seedFamily(t, db, "Mawere", "ABC123")

	got, err := db.FamilyByCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("FamilyByCode failed: %v", err)
	}
	if got == nil || got.ID != family.ID {
		t.Fatalf("family not found by code")
	}
	if !got.NeedsSync {
		t.Error("freshly created family should need sync")
	}

	memberships, err := db.MembershipsByFamily(ctx, family.ID)
	if err != nil {
		t.Fatalf("MembershipsByFamily failed: %v", err)
	}
	if len(memberships) != 1 {
		t.Fatalf("got %d memberships, want 1", len(memberships))
	}
	if memberships[0].Role != models.RoleOwnerAdmin {
		t.Errorf("owner role = %q, want %q", memberships[0].Role, models.RoleOwnerAdmin)
	}
}

func TestCreateFamilyDuplicateCodeIsAtomic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedFamily(t, db, "First", "DUP123")

	familiesBefore, _ := db.CountFamilies(ctx)
	membershipsBefore, _ := db.CountMemberships(ctx)

	member := models.NewMember("Second Owner", "external-2")
	family := models.NewFamily("Second", "DUP123", member.ID)
	owner := models.NewMembership(family.ID, member.ID, models.RoleOwnerAdmin)

	err := db.CreateFamily(ctx, family, member, owner)
	if errs.CodeOf(err) != errs.CodeConstraintViolation {
		t.Fatalf("error = %v, want constraint violation", err)
	}

	familiesAfter, _ := db.CountFamilies(ctx)
	membershipsAfter, _ := db.CountMemberships(ctx)
	if familiesAfter != familiesBefore || membershipsAfter != membershipsBefore {
		t.Errorf("failed creation partially committed: families %d->%d, memberships %d->%d",
			familiesBefore, familiesAfter, membershipsBefore, membershipsAfter)
	}

	got, err := db.MemberByID(ctx, member.ID)
	if err != nil {
		t.Fatalf("MemberByID failed: %v", err)
	}
	if got != nil {
		t.Error("failed creation left the creator profile behind")
	}
}

func TestCreateFamilyKeepsExistingCreatorProfile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	member := models.NewMember("Owner", "external-1")
	if err := db.InsertMember(ctx, member); err != nil {
		t.Fatalf("failed to insert member: %v", err)
	}
	member.MarkSynced("remote-rec-1", time.Now().UTC())
	if err := db.UpdateMember(ctx, member); err != nil {
		t.Fatalf("UpdateMember failed: %v", err)
	}

	family := models.NewFamily("Mawere", "KEEP12", member.ID)
	owner := models.NewMembership(family.ID, member.ID, models.RoleOwnerAdmin)
	if err := db.CreateFamily(ctx, family, member, owner); err != nil {
		t.Fatalf("failed to create family: %v", err)
	}

	got, err := db.MemberByID(ctx, member.ID)
	if err != nil {
		t.Fatalf("MemberByID failed: %v", err)
	}
	if got.RemoteRecordID != "remote-rec-1" {
		t.Errorf("existing profile overwritten: RemoteRecordID = %q", got.RemoteRecordID)
	}
}

func TestSecondActiveOwnerRejected(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	family, _ := seedFamily(t, db, "Mawere", "OWN123")

	member := models.NewMember("Pretender", "external-x")
	if err := db.InsertMember(ctx, member); err != nil {
		t.Fatalf("failed to insert member: %v", err)
	}

	second := models.NewMembership(family.ID, member.ID, models.RoleOwnerAdmin)
	err := db.InsertMembership(ctx, second)
	if errs.CodeOf(err) != errs.CodeConstraintViolation {
		t.Fatalf("error = %v, want constraint violation", err)
	}
}

func TestDuplicateActivePairRejected(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	family, member := seedFamily(t, db, "Mawere", "PAIR12")

	dup := models.NewMembership(family.ID, member.ID, models.RoleAdult)
	err := db.InsertMembership(ctx, dup)
	if errs.CodeOf(err) != errs.CodeConstraintViolation {
		t.Fatalf("error = %v, want constraint violation", err)
	}
}

func TestRemovedMembershipAllowsRejoin(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	family, _ := seedFamily(t, db, "Mawere", "REJOIN")

	member := models.NewMember("Visitor", "external-v")
	if err := db.InsertMember(ctx, member); err != nil {
		t.Fatalf("failed to insert member: %v", err)
	}
	first := models.NewMembership(family.ID, member.ID, models.RoleVisitor)
	if err := db.InsertMembership(ctx, first); err != nil {
		t.Fatalf("failed to insert membership: %v", err)
	}

	first.Status = models.StatusRemoved
	if err := db.UpdateMembership(ctx, first); err != nil {
		t.Fatalf("failed to remove membership: %v", err)
	}

	// History is preserved; a fresh active membership is allowed.
	second := models.NewMembership(family.ID, member.ID, models.RoleAdult)
	if err := db.InsertMembership(ctx, second); err != nil {
		t.Fatalf("rejoin after removal should succeed: %v", err)
	}

	memberships, err := db.MembershipsByFamily(ctx, family.ID)
	if err != nil {
		t.Fatalf("MembershipsByFamily failed: %v", err)
	}
	if len(memberships) != 3 {
		t.Errorf("got %d memberships, want 3 (owner, removed, rejoined)", len(memberships))
	}
}

func TestPendingAndSyncRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	family, member := seedFamily(t, db, "Mawere", "SYNC12")

	pending, err := db.PendingFamilies(ctx)
	if err != nil {
		t.Fatalf("PendingFamilies failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending families, want 1", len(pending))
	}

	now := time.Now().UTC().Truncate(time.Second)
	family.MarkSynced("remote-rec-1", now)
	if err := db.UpdateFamily(ctx, family); err != nil {
		t.Fatalf("UpdateFamily failed: %v", err)
	}

	pending, err = db.PendingFamilies(ctx)
	if err != nil {
		t.Fatalf("PendingFamilies failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending families after sync, want 0", len(pending))
	}

	got, err := db.FamilyByID(ctx, family.ID)
	if err != nil {
		t.Fatalf("FamilyByID failed: %v", err)
	}
	if got.RemoteRecordID != "remote-rec-1" {
		t.Errorf("RemoteRecordID = %q, want %q", got.RemoteRecordID, "remote-rec-1")
	}
	if got.LastSyncAt.IsZero() {
		t.Error("LastSyncAt should be set after sync")
	}

	// Member and membership remain pending and visible.
	members, err := db.PendingMembers(ctx)
	if err != nil {
		t.Fatalf("PendingMembers failed: %v", err)
	}
	if len(members) != 1 || members[0].ID != member.ID {
		t.Errorf("expected member %s pending", member.ID)
	}
	memberships, err := db.PendingMemberships(ctx)
	if err != nil {
		t.Fatalf("PendingMemberships failed: %v", err)
	}
	if len(memberships) != 1 {
		t.Errorf("got %d pending memberships, want 1", len(memberships))
	}
}

func TestFamilyByCodeMissing(t *testing.T) {
	db := openTestDB(t)

	family, err := db.FamilyByCode(context.Background(), "NOPE12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if family != nil {
		t.Errorf("expected nil family, got %+v", family)
	}
}
