package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"tribeboard/internal/errs"
	"tribeboard/internal/models"
)

// mapConstraint converts a sqlite constraint failure into the engine's
// typed constraint-violation error, leaving I/O errors untouched.
func mapConstraint(err error, message string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return errs.Wrap(errs.CodeConstraintViolation, message, err)
	}
	return err
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNullTime(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}

// CreateFamily commits a family, its creator's profile and the owner
// membership in a single transaction, so a failed creation leaves no rows
// behind. A creator profile that already exists is left as is. The
// unique-code check is re-run against a fresh read inside the transaction
// immediately before the insert; a violation that still slips through the
// race window is converted into a constraint-violation error and nothing
// is committed.
func (db *DB) CreateFamily(ctx context.Context, family *models.Family, creator *models.Member, owner *models.Membership) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM families WHERE code = ?", family.Code).Scan(&count); err != nil {
		return fmt.Errorf("failed to check code uniqueness: %w", err)
	}
	if count > 0 {
		return errs.Newf(errs.CodeConstraintViolation, "family code %s already in use", family.Code)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO members (id, display_name, identity_hash, created_at, needs_sync, remote_record_id, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		creator.ID, creator.DisplayName, creator.IdentityHash, creator.CreatedAt,
		creator.NeedsSync, creator.RemoteRecordID, nullTime(creator.LastSyncAt))
	if err != nil {
		return mapConstraint(err, "failed to insert creator profile")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO families (id, name, code, created_by, created_at, needs_sync, remote_record_id, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		family.ID, family.Name, family.Code, family.CreatedBy, family.CreatedAt,
		family.NeedsSync, family.RemoteRecordID, nullTime(family.LastSyncAt))
	if err != nil {
		return mapConstraint(err, "failed to insert family")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memberships (id, family_id, member_id, role, status, joined_at, needs_sync, remote_record_id, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		owner.ID, owner.FamilyID, owner.MemberID, owner.Role, owner.Status, owner.JoinedAt,
		owner.NeedsSync, owner.RemoteRecordID, nullTime(owner.LastSyncAt))
	if err != nil {
		return mapConstraint(err, "failed to insert owner membership")
	}

	if err := tx.Commit(); err != nil {
		return mapConstraint(err, "failed to commit family creation")
	}
	return nil
}

// InsertFamily stores a family row on its own. Used by the pull path when
// a family created elsewhere arrives from the remote store; the creation
// flow uses CreateFamily so the owner membership commits atomically.
func (db *DB) InsertFamily(ctx context.Context, family *models.Family) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO families (id, name, code, created_by, created_at, needs_sync, remote_record_id, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		family.ID, family.Name, family.Code, family.CreatedBy, family.CreatedAt,
		family.NeedsSync, family.RemoteRecordID, nullTime(family.LastSyncAt))
	if err != nil {
		return mapConstraint(err, "failed to insert family")
	}
	return nil
}

// InsertMember stores a member profile.
func (db *DB) InsertMember(ctx context.Context, member *models.Member) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO members (id, display_name, identity_hash, created_at, needs_sync, remote_record_id, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		member.ID, member.DisplayName, member.IdentityHash, member.CreatedAt,
		member.NeedsSync, member.RemoteRecordID, nullTime(member.LastSyncAt))
	if err != nil {
		return mapConstraint(err, "failed to insert member")
	}
	return nil
}

// InsertMembership stores a membership link, subject to the active-pair and
// single-owner invariants.
func (db *DB) InsertMembership(ctx context.Context, membership *models.Membership) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO memberships (id, family_id, member_id, role, status, joined_at, needs_sync, remote_record_id, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		membership.ID, membership.FamilyID, membership.MemberID, membership.Role, membership.Status,
		membership.JoinedAt, membership.NeedsSync, membership.RemoteRecordID, nullTime(membership.LastSyncAt))
	if err != nil {
		return mapConstraint(err, "failed to insert membership")
	}
	return nil
}

const familyColumns = "id, name, code, created_by, created_at, needs_sync, remote_record_id, last_sync_at"

func scanFamily(row interface{ Scan(...interface{}) error }) (*models.Family, error) {
	family := &models.Family{}
	var lastSync sql.NullTime
	err := row.Scan(&family.ID, &family.Name, &family.Code, &family.CreatedBy,
		&family.CreatedAt, &family.NeedsSync, &family.RemoteRecordID, &lastSync)
	if err != nil {
		return nil, err
	}
	family.LastSyncAt = fromNullTime(lastSync)
	return family, nil
}

// FamilyByID retrieves a family by ID, or nil when absent.
func (db *DB) FamilyByID(ctx context.Context, id string) (*models.Family, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+familyColumns+" FROM families WHERE id = ?", id)
	family, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return family, nil
}

// FamilyByCode retrieves a family by its join code, or nil when absent.
// Always a fresh read against the store, never a cached value.
func (db *DB) FamilyByCode(ctx context.Context, code string) (*models.Family, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+familyColumns+" FROM families WHERE code = ?", code)
	family, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family by code: %w", err)
	}
	return family, nil
}

// CodeInUse reports whether a join code exists in the local store.
func (db *DB) CodeInUse(ctx context.Context, code string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM families WHERE code = ?", code).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check code: %w", err)
	}
	return count > 0, nil
}

// UpdateFamily writes a family row back in full, sync metadata included.
func (db *DB) UpdateFamily(ctx context.Context, family *models.Family) error {
	_, err := db.ExecContext(ctx, `
		UPDATE families SET name = ?, code = ?, created_by = ?, created_at = ?,
			needs_sync = ?, remote_record_id = ?, last_sync_at = ?
		WHERE id = ?`,
		family.Name, family.Code, family.CreatedBy, family.CreatedAt,
		family.NeedsSync, family.RemoteRecordID, nullTime(family.LastSyncAt), family.ID)
	if err != nil {
		return mapConstraint(err, "failed to update family")
	}
	return nil
}

const memberColumns = "id, display_name, identity_hash, created_at, needs_sync, remote_record_id, last_sync_at"

func scanMember(row interface{ Scan(...interface{}) error }) (*models.Member, error) {
	member := &models.Member{}
	var lastSync sql.NullTime
	err := row.Scan(&member.ID, &member.DisplayName, &member.IdentityHash,
		&member.CreatedAt, &member.NeedsSync, &member.RemoteRecordID, &lastSync)
	if err != nil {
		return nil, err
	}
	member.LastSyncAt = fromNullTime(lastSync)
	return member, nil
}

// MemberByID retrieves a member by ID, or nil when absent.
func (db *DB) MemberByID(ctx context.Context, id string) (*models.Member, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE id = ?", id)
	member, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// UpdateMember writes a member row back in full.
func (db *DB) UpdateMember(ctx context.Context, member *models.Member) error {
	_, err := db.ExecContext(ctx, `
		UPDATE members SET display_name = ?, identity_hash = ?, created_at = ?,
			needs_sync = ?, remote_record_id = ?, last_sync_at = ?
		WHERE id = ?`,
		member.DisplayName, member.IdentityHash, member.CreatedAt,
		member.NeedsSync, member.RemoteRecordID, nullTime(member.LastSyncAt), member.ID)
	if err != nil {
		return mapConstraint(err, "failed to update member")
	}
	return nil
}

const membershipColumns = "id, family_id, member_id, role, status, joined_at, needs_sync, remote_record_id, last_sync_at"

func scanMembership(row interface{ Scan(...interface{}) error }) (*models.Membership, error) {
	m := &models.Membership{}
	var lastSync sql.NullTime
	err := row.Scan(&m.ID, &m.FamilyID, &m.MemberID, &m.Role, &m.Status,
		&m.JoinedAt, &m.NeedsSync, &m.RemoteRecordID, &lastSync)
	if err != nil {
		return nil, err
	}
	m.LastSyncAt = fromNullTime(lastSync)
	return m, nil
}

// MembershipByID retrieves a membership by ID, or nil when absent.
func (db *DB) MembershipByID(ctx context.Context, id string) (*models.Membership, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE id = ?", id)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ActiveMembership retrieves the active membership for a (family, member)
// pair, or nil when there is none.
func (db *DB) ActiveMembership(ctx context.Context, familyID, memberID string) (*models.Membership, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE family_id = ? AND member_id = ? AND status = 'active'",
		familyID, memberID)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active membership: %w", err)
	}
	return m, nil
}

// MembershipsByFamily retrieves all memberships of a family, removed ones
// included.
func (db *DB) MembershipsByFamily(ctx context.Context, familyID string) ([]models.Membership, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE family_id = ? ORDER BY joined_at ASC", familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, *m)
	}
	return memberships, rows.Err()
}

// UpdateMembership writes a membership row back in full. Role and status
// changes stay subject to the partial unique indexes, so promoting a second
// owner fails as a constraint violation.
func (db *DB) UpdateMembership(ctx context.Context, membership *models.Membership) error {
	_, err := db.ExecContext(ctx, `
		UPDATE memberships SET family_id = ?, member_id = ?, role = ?, status = ?, joined_at = ?,
			needs_sync = ?, remote_record_id = ?, last_sync_at = ?
		WHERE id = ?`,
		membership.FamilyID, membership.MemberID, membership.Role, membership.Status, membership.JoinedAt,
		membership.NeedsSync, membership.RemoteRecordID, nullTime(membership.LastSyncAt), membership.ID)
	if err != nil {
		return mapConstraint(err, "failed to update membership")
	}
	return nil
}

// PendingFamilies returns families awaiting a confirmed remote write.
func (db *DB) PendingFamilies(ctx context.Context) ([]models.Family, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+familyColumns+" FROM families WHERE needs_sync = 1 ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query pending families: %w", err)
	}
	defer rows.Close()

	var families []models.Family
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, *f)
	}
	return families, rows.Err()
}

// PendingMembers returns members awaiting a confirmed remote write.
func (db *DB) PendingMembers(ctx context.Context) ([]models.Member, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE needs_sync = 1 ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query pending members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// PendingMemberships returns memberships awaiting a confirmed remote write.
func (db *DB) PendingMemberships(ctx context.Context) ([]models.Membership, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE needs_sync = 1 ORDER BY joined_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query pending memberships: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, *m)
	}
	return memberships, rows.Err()
}

// CountFamilies returns the number of family rows. Used to verify
// all-or-nothing commits.
func (db *DB) CountFamilies(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM families").Scan(&count)
	return count, err
}

// CountMemberships returns the number of membership rows.
func (db *DB) CountMemberships(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memberships").Scan(&count)
	return count, err
}
