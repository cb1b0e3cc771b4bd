package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
// Writes are serialized per connection; reads share an RW lock.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
// violation_end and duration_seconds are declared for forward
// compatibility; no code path writes them yet.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS zones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		camera_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		coordinates TEXT NOT NULL,
		capacity_limit INTEGER NOT NULL DEFAULT 50,
		warning_threshold INTEGER NOT NULL DEFAULT 40,
		alert_color TEXT NOT NULL DEFAULT '#4ecdc4',
		frame_width INTEGER DEFAULT 0,
		frame_height INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(camera_id, user_id, name)
	);

	CREATE TABLE IF NOT EXISTS telemetry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		camera_id INTEGER NOT NULL,
		total_count INTEGER NOT NULL DEFAULT 0,
		zone_counts TEXT NOT NULL DEFAULT '{}',
		fps REAL DEFAULT 0,
		processing_time REAL DEFAULT 0,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS violations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		zone_id INTEGER DEFAULT 0,
		camera_id INTEGER NOT NULL,
		zone_name TEXT NOT NULL,
		people_count INTEGER NOT NULL DEFAULT 0,
		capacity_limit INTEGER NOT NULL DEFAULT 0,
		violation_type TEXT NOT NULL,
		violation_start DATETIME NOT NULL,
		violation_end DATETIME,
		duration_seconds INTEGER
	);

	CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		filename TEXT NOT NULL,
		filepath TEXT NOT NULL,
		is_current INTEGER NOT NULL DEFAULT 0,
		uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_zones_camera ON zones(camera_id);
	CREATE INDEX IF NOT EXISTS idx_telemetry_camera ON telemetry(camera_id);
	CREATE INDEX IF NOT EXISTS idx_telemetry_timestamp ON telemetry(timestamp);
	CREATE INDEX IF NOT EXISTS idx_violations_camera ON violations(camera_id);
	CREATE INDEX IF NOT EXISTS idx_violations_start ON violations(violation_start);
	CREATE INDEX IF NOT EXISTS idx_videos_user ON videos(user_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
