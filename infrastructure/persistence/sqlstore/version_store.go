package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"blueprint-editor/infrastructure/persistence/schema"
)

// VersionStore records applied migrations in schema_migrations
type VersionStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewVersionStore creates a version store
func NewVersionStore(db *sql.DB, d Dialect) *VersionStore {
	return &VersionStore{db: db, dialect: d}
}

// Ensure creates the history table
func (s *VersionStore) Ensure(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    version     INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    checksum    TEXT NOT NULL,
    applied_at  TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// Applied lists the recorded migrations
func (s *VersionStore) Applied(ctx context.Context) ([]schema.SchemaVersion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version, description, checksum, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	var out []schema.SchemaVersion
	for rows.Next() {
		var v schema.SchemaVersion
		var applied sqlTime
		if err := rows.Scan(&v.Version, &v.Description, &v.Checksum, &applied); err != nil {
			return nil, err
		}
		v.AppliedAt = applied.Time
		out = append(out, v)
	}
	return out, rows.Err()
}

// Record stores an applied migration
func (s *VersionStore) Record(ctx context.Context, v schema.SchemaVersion) error {
	_, err := s.db.ExecContext(ctx,
		s.dialect.Rebind(`INSERT INTO schema_migrations (version, description, checksum, applied_at) VALUES (?, ?, ?, ?)`),
		// applied_at is a text column in every dialect
		v.Version, v.Description, v.Checksum, SQLite.TimeArg(v.AppliedAt))
	return err
}

// Remove deletes a migration record after rollback
func (s *VersionStore) Remove(ctx context.Context, version int) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM schema_migrations WHERE version = ?`), version)
	return err
}
