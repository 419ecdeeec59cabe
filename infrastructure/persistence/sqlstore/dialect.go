// Package sqlstore persists diagrams through database/sql. PostgreSQL is
// reached with the pgx stdlib driver and SQLite with modernc.org/sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"blueprint-editor/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// Dialect captures the differences between the supported databases
type Dialect struct {
	Name   string
	Driver string
	// numbered placeholders ($1) instead of ?
	numbered bool
	// timestamps stored as text
	textTime bool
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "pgx", numbered: true}
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite", textTime: true}
)

// DialectFor returns the dialect for a backend name
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql dialect %q", name)
}

// Rebind rewrites ? placeholders for dialects that number them
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TimeArg converts a timestamp into the column's storage form
func (d Dialect) TimeArg(t time.Time) interface{} {
	t = t.UTC()
	if d.textTime {
		return t.Format(time.RFC3339Nano)
	}
	return t
}

// Open connects and pings the database
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if d == SQLite {
		// SQLite allows one writer; a single connection also keeps
		// :memory: databases alive for the pool's lifetime
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	if d == SQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}
	return db, nil
}

// sqlTime scans timestamp columns from either dialect
type sqlTime struct {
	Time time.Time
}

func (t *sqlTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}

func (t *sqlTime) parse(s string) error {
	parsed, err := utils.ParseTimestamp(s)
	if err != nil {
		return fmt.Errorf("unrecognised timestamp %q", s)
	}
	t.Time = parsed
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }
