package database

// schema is applied at startup. All statements are idempotent. Memberships
// are never deleted; removal flips status, so the partial indexes scope the
// uniqueness invariants to active rows only.
const schema = `
CREATE TABLE IF NOT EXISTS families (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	code             TEXT NOT NULL UNIQUE,
	created_by       TEXT NOT NULL,
	created_at       DATETIME NOT NULL,
	needs_sync       INTEGER NOT NULL DEFAULT 1,
	remote_record_id TEXT NOT NULL DEFAULT '',
	last_sync_at     DATETIME
);

CREATE TABLE IF NOT EXISTS members (
	id               TEXT PRIMARY KEY,
	display_name     TEXT NOT NULL,
	identity_hash    TEXT NOT NULL,
	created_at       DATETIME NOT NULL,
	needs_sync       INTEGER NOT NULL DEFAULT 1,
	remote_record_id TEXT NOT NULL DEFAULT '',
	last_sync_at     DATETIME
);

CREATE TABLE IF NOT EXISTS memberships (
	id               TEXT PRIMARY KEY,
	family_id        TEXT NOT NULL REFERENCES families(id),
	member_id        TEXT NOT NULL REFERENCES members(id),
	role             TEXT NOT NULL,
	status           TEXT NOT NULL,
	joined_at        DATETIME NOT NULL,
	needs_sync       INTEGER NOT NULL DEFAULT 1,
	remote_record_id TEXT NOT NULL DEFAULT '',
	last_sync_at     DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_single_owner
	ON memberships(family_id)
	WHERE role = 'owner_admin' AND status = 'active';

CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_active_pair
	ON memberships(family_id, member_id)
	WHERE status = 'active';

CREATE INDEX IF NOT EXISTS idx_families_needs_sync ON families(needs_sync);
CREATE INDEX IF NOT EXISTS idx_members_needs_sync ON members(needs_sync);
CREATE INDEX IF NOT EXISTS idx_memberships_needs_sync ON memberships(needs_sync);
`
