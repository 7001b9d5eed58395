package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of idempotent SQL statements.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT     PRIMARY KEY,
		username      TEXT     NOT NULL UNIQUE,
		password_hash TEXT     NOT NULL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT     PRIMARY KEY,
		user_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS passkey_credentials (
		id              TEXT     PRIMARY KEY,
		user_id         TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name            TEXT     NOT NULL DEFAULT '',
		credential_json TEXT     NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS apartments (
		id          TEXT     PRIMARY KEY,
		owner_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		number      INTEGER  NOT NULL,
		description TEXT,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL,
		UNIQUE (owner_id, number)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                TEXT PRIMARY KEY,
		apartment_id      TEXT NOT NULL REFERENCES apartments(id) ON DELETE CASCADE,
		start_date        TEXT NOT NULL,
		end_date          TEXT NOT NULL,
		cleaning_deadline TEXT,
		cleaning_date     TEXT,
		summary           TEXT,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
		CHECK (start_date < end_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_apartment ON bookings (apartment_id, start_date)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_end_date ON bookings (end_date)`,
	`CREATE TABLE IF NOT EXISTS calendar_subscriptions (
		id               TEXT     PRIMARY KEY,
		owner_id         TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		url              TEXT     NOT NULL,
		apartment_number INTEGER  NOT NULL,
		sha              TEXT     NOT NULL DEFAULT '',
		last_modified    TEXT     NOT NULL DEFAULT '',
		synced_at        DATETIME,
		last_error       TEXT     NOT NULL DEFAULT '',
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (owner_id, url)
	)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	columnMigrations := []struct {
		table, column, definition string
	}{
		{"calendar_subscriptions", "etag", "TEXT NOT NULL DEFAULT ''"},
	}

	for _, cm := range columnMigrations {
		if err := addColumnIfNotExists(db, cm.table, cm.column, cm.definition); err != nil {
			return fmt.Errorf("adding %s.%s: %w", cm.table, cm.column, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(db *sql.DB, table, column, definition string) error {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?",
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking table info: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}
