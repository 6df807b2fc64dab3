// Package database persists local deploy history in SQLite.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"skylift/internal/database/migrations"
	"skylift/internal/deploy"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase stores deploy history rows in a SQLite file.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection and brings the
// schema up to date. path can be a file path or ":memory:" for an in-memory
// database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// RecordDeploy inserts one deploy history row. Re-recording the same version
// replaces the earlier row: a retried deploy reuses its version ID only when
// the first attempt never reached the server.
func (s *SQLiteDatabase) RecordDeploy(rec *deploy.Record) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO deploys
			(version_id, app_id, stage, status, deployed_url, file_count, total_size, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, rec.AppID, rec.Stage, rec.Status, rec.DeployedURL,
		rec.FileCount, rec.TotalSize, rec.StartedAt, rec.FinishedAt)
	if err != nil {
		return fmt.Errorf("recording deploy: %w", err)
	}
	return nil
}

// ListDeploys returns the most recent deploy rows for an app, newest first.
func (s *SQLiteDatabase) ListDeploys(appID string, limit int) ([]*deploy.Record, error) {
	rows, err := s.db.Query(`
		SELECT version_id, app_id, stage, status, deployed_url, file_count, total_size, started_at, finished_at
		FROM deploys
		WHERE app_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing deploys: %w", err)
	}
	defer rows.Close()

	var result []*deploy.Record
	for rows.Next() {
		var rec deploy.Record
		var startedAt, finishedAt time.Time
		err := rows.Scan(&rec.VersionID, &rec.AppID, &rec.Stage, &rec.Status, &rec.DeployedURL,
			&rec.FileCount, &rec.TotalSize, &startedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning deploy row: %w", err)
		}
		rec.StartedAt = startedAt
		rec.FinishedAt = finishedAt
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deploy rows: %w", err)
	}
	return result, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase records deploy history.
var _ deploy.Recorder = (*SQLiteDatabase)(nil)
