package schema

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"lukechampine.com/blake3"
)

// SchemaVersion records one applied migration
type SchemaVersion struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
	Checksum    string    `json:"checksum"`
}

// Migration moves the schema from Version-1 to Version
type Migration struct {
	Version     int
	Description string
	// Source is the statement text; it feeds the recorded checksum
	Source string
	Up     MigrationFunc
	Down   MigrationFunc
}

// Checksum returns the BLAKE3 digest of the migration source
func (m Migration) Checksum() string {
	sum := blake3.Sum256([]byte(m.Source))
	return hex.EncodeToString(sum[:])
}

// MigrationFunc is a function that performs a migration
type MigrationFunc func(ctx context.Context) error

// VersionStore persists the migration history
type VersionStore interface {
	Ensure(ctx context.Context) error
	Applied(ctx context.Context) ([]SchemaVersion, error)
	Record(ctx context.Context, v SchemaVersion) error
	Remove(ctx context.Context, version int) error
}

// SchemaEvolution manages database schema evolution
type SchemaEvolution struct {
	migrations []Migration
	store      VersionStore
	logger     *zap.Logger
}

// NewSchemaEvolution creates a new schema evolution manager
func NewSchemaEvolution(store VersionStore, logger *zap.Logger) *SchemaEvolution {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaEvolution{store: store, logger: logger}
}

// RegisterMigration registers a new migration
func (s *SchemaEvolution) RegisterMigration(migration Migration) error {
	if migration.Version <= 0 {
		return fmt.Errorf("invalid migration version %d", migration.Version)
	}
	if migration.Up == nil {
		return fmt.Errorf("migration %d has no up step", migration.Version)
	}
	for _, existing := range s.migrations {
		if existing.Version == migration.Version {
			return fmt.Errorf("migration %d already exists", migration.Version)
		}
	}

	s.migrations = append(s.migrations, migration)
	sort.Slice(s.migrations, func(i, j int) bool {
		return s.migrations[i].Version < s.migrations[j].Version
	})
	return nil
}

// Latest returns the highest registered version
func (s *SchemaEvolution) Latest() int {
	if len(s.migrations) == 0 {
		return 0
	}
	return s.migrations[len(s.migrations)-1].Version
}

// CurrentVersion returns the highest applied version
func (s *SchemaEvolution) CurrentVersion(ctx context.Context) (int, error) {
	if err := s.store.Ensure(ctx); err != nil {
		return 0, err
	}
	applied, err := s.store.Applied(ctx)
	if err != nil {
		return 0, err
	}
	current := 0
	for _, v := range applied {
		if v.Version > current {
			current = v.Version
		}
	}
	return current, nil
}

// Migrate performs migrations to reach the target version. A negative
// target means the latest registered version.
func (s *SchemaEvolution) Migrate(ctx context.Context, targetVersion int) error {
	if targetVersion < 0 {
		targetVersion = s.Latest()
	}
	current, err := s.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	switch {
	case targetVersion == current:
		return nil
	case targetVersion < current:
		return s.rollback(ctx, current, targetVersion)
	default:
		return s.upgrade(ctx, current, targetVersion)
	}
}

// upgrade performs forward migrations
func (s *SchemaEvolution) upgrade(ctx context.Context, current, target int) error {
	for _, m := range s.migrations {
		if m.Version <= current || m.Version > target {
			continue
		}
		if err := m.Up(ctx); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if err := s.store.Record(ctx, SchemaVersion{
			Version:     m.Version,
			Description: m.Description,
			AppliedAt:   time.Now().UTC(),
			Checksum:    m.Checksum(),
		}); err != nil {
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
		s.logger.Info("Applied migration", zap.Int("version", m.Version), zap.String("description", m.Description))
	}
	return nil
}

// rollback performs backward migrations
func (s *SchemaEvolution) rollback(ctx context.Context, current, target int) error {
	for i := len(s.migrations) - 1; i >= 0; i-- {
		m := s.migrations[i]
		if m.Version > current || m.Version <= target {
			continue
		}
		if m.Down == nil {
			return fmt.Errorf("migration %d does not support rollback", m.Version)
		}
		if err := m.Down(ctx); err != nil {
			return fmt.Errorf("rollback %d failed: %w", m.Version, err)
		}
		if err := s.store.Remove(ctx, m.Version); err != nil {
			return fmt.Errorf("removing migration record %d: %w", m.Version, err)
		}
		s.logger.Info("Rolled back migration", zap.Int("version", m.Version))
	}
	return nil
}

// History returns the applied migrations with drift flagged: a recorded
// checksum that no longer matches the registered source
func (s *SchemaEvolution) History(ctx context.Context) ([]SchemaVersion, []int, error) {
	if err := s.store.Ensure(ctx); err != nil {
		return nil, nil, err
	}
	applied, err := s.store.Applied(ctx)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(applied, func(i, j int) bool { return applied[i].Version < applied[j].Version })

	byVersion := make(map[int]Migration, len(s.migrations))
	for _, m := range s.migrations {
		byVersion[m.Version] = m
	}
	var drifted []int
	for _, v := range applied {
		if m, ok := byVersion[v.Version]; ok && v.Checksum != "" && v.Checksum != m.Checksum() {
			drifted = append(drifted, v.Version)
		}
	}
	return applied, drifted, nil
}
