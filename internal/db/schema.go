package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tube_types (
    position    INTEGER PRIMARY KEY,
    name        TEXT NOT NULL CHECK (trim(name) <> ''),
    description TEXT NOT NULL DEFAULT '',
    cure_hours  INTEGER NOT NULL CHECK (cure_hours >= 1)
);

CREATE TABLE IF NOT EXISTS batches (
    position            INTEGER PRIMARY KEY,
    type_name           TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    quantity            INTEGER NOT NULL CHECK (quantity >= 0),
    intake_at           DATETIME NOT NULL,
    release_at          DATETIME NOT NULL,
    withdrawn_at        DATETIME,
    withdrawn_quantity  INTEGER CHECK (withdrawn_quantity >= 1),
    withdrawal_humidity INTEGER CHECK (withdrawal_humidity BETWEEN 0 AND 100),
    CHECK (withdrawn_at IS NOT NULL OR (withdrawn_quantity IS NULL AND withdrawal_humidity IS NULL))
);

CREATE TABLE IF NOT EXISTS type_photos (
    type_name  TEXT PRIMARY KEY,
    image      BLOB NOT NULL,
    image_mime TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: look up open batches without scanning closed history.
	`CREATE INDEX IF NOT EXISTS idx_batches_open
	     ON batches(position) WHERE withdrawn_at IS NULL`,
}

// EnsureSchema creates all tables and indexes if they don't already exist and
// applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
