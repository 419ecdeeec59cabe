package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"blueprint-editor/infrastructure/persistence/schema"

	"go.uber.org/zap"
)

//go:embed migrations
var migrationFiles embed.FS

// Migrations loads the embedded migrations for a dialect
func Migrations(db *sql.DB, d Dialect) ([]schema.Migration, error) {
	dir := path.Join("migrations", d.Name)
	entries, err := fs.ReadDir(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := map[int]*schema.Migration{}
	for _, e := range entries {
		name := e.Name()
		version, desc, direction, ok := parseMigrationName(name)
		if !ok {
			continue
		}
		body, err := migrationFiles.ReadFile(path.Join(dir, name))
		if err != nil {
			return nil, err
		}

		m := byVersion[version]
		if m == nil {
			m = &schema.Migration{Version: version, Description: desc}
			byVersion[version] = m
		}
		run := execScript(db, string(body))
		if direction == "up" {
			m.Source = string(body)
			m.Up = run
		} else {
			m.Down = run
		}
	}

	out := make([]schema.Migration, 0, len(byVersion))
	for _, m := range byVersion {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// NewMigrator returns a schema evolution manager loaded with the dialect's
// migrations and backed by the schema_migrations table
func NewMigrator(db *sql.DB, d Dialect, logger *zap.Logger) (*schema.SchemaEvolution, error) {
	migrations, err := Migrations(db, d)
	if err != nil {
		return nil, err
	}
	evo := schema.NewSchemaEvolution(NewVersionStore(db, d), logger)
	for _, m := range migrations {
		if err := evo.RegisterMigration(m); err != nil {
			return nil, err
		}
	}
	return evo, nil
}

// parseMigrationName splits "0001_create_diagrams.up.sql"
func parseMigrationName(name string) (version int, desc, direction string, ok bool) {
	if !strings.HasSuffix(name, ".sql") {
		return 0, "", "", false
	}
	base := strings.TrimSuffix(name, ".sql")
	switch {
	case strings.HasSuffix(base, ".up"):
		direction, base = "up", strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		direction, base = "down", strings.TrimSuffix(base, ".down")
	default:
		return 0, "", "", false
	}
	num, rest, found := strings.Cut(base, "_")
	if !found {
		return 0, "", "", false
	}
	v, err := strconv.Atoi(num)
	if err != nil {
		return 0, "", "", false
	}
	return v, strings.ReplaceAll(rest, "_", " "), direction, true
}

// execScript runs each statement of a script in one transaction
func execScript(db *sql.DB, script string) schema.MigrationFunc {
	return func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range strings.Split(script, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("%w: %s", err, strings.TrimSpace(stmt))
			}
		}
		return tx.Commit()
	}
}
