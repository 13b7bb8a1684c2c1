package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to ":memory:" opens a separate database.
	db.SetMaxOpenConns(1)

	return &DB{db}, nil
}

// RunMigrations creates the form archive tables if they do not exist.
func (db *DB) RunMigrations() error {
	migration := `
-- User account request form
CREATE TABLE IF NOT EXISTS user_requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    start_timestamp TIMESTAMP NOT NULL,
    email TEXT NOT NULL,
    last_name TEXT NOT NULL,
    pi_last_name TEXT NOT NULL,
    power_user BOOLEAN NOT NULL,
    end_timestamp TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_user_requests_email ON user_requests(email);

-- User account update form
CREATE TABLE IF NOT EXISTS user_updates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TIMESTAMP NOT NULL,
    email TEXT NOT NULL,
    last_name TEXT NOT NULL,
    pi_last_name TEXT,
    new_power_user BOOLEAN,
    new_end_timestamp TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_user_updates_email ON user_updates(email);

-- PI account request form
CREATE TABLE IF NOT EXISTS pi_requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    start_timestamp TIMESTAMP NOT NULL,
    email TEXT NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL,
    speed_code TEXT NOT NULL,
    storage REAL NOT NULL,
    pi_is_power_user BOOLEAN NOT NULL
);

-- PI account update form
CREATE TABLE IF NOT EXISTS pi_updates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TIMESTAMP NOT NULL,
    email TEXT NOT NULL,
    last_name TEXT NOT NULL,
    speed_code TEXT,
    new_storage REAL,
    account_closed BOOLEAN NOT NULL DEFAULT 0
);

-- One row per import
CREATE TABLE IF NOT EXISTS imports (
    id TEXT PRIMARY KEY,
    imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    user_requests INTEGER NOT NULL,
    user_updates INTEGER NOT NULL,
    pi_requests INTEGER NOT NULL,
    pi_updates INTEGER NOT NULL
);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
