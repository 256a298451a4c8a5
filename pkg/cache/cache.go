package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/e2llm/repoconf/pkg/metadata"
)

// Cache keeps the package lists downloaded by repository refreshes.
type Cache struct {
	db *sql.DB
}

// Status describes the last successful refresh of a repository.
type Status struct {
	Alias       string
	Revision    string
	Packages    int
	RefreshedAt time.Time
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return c, nil
}

func (c *Cache) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS repositories (
		alias TEXT PRIMARY KEY,
		revision TEXT NOT NULL DEFAULT '',
		refreshed_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS packages (
		alias TEXT NOT NULL REFERENCES repositories(alias) ON DELETE CASCADE,
		name TEXT NOT NULL,
		arch TEXT NOT NULL,
		epoch INTEGER NOT NULL DEFAULT 0,
		version TEXT NOT NULL,
		release TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_packages_alias ON packages(alias);
	`
	_, err := c.db.Exec(schema)
	return err
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Store replaces the cached package list of alias.
func (c *Cache) Store(ctx context.Context, alias, revision string, pkgs []metadata.Package, now time.Time) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM packages WHERE alias = ?`, alias); err != nil {
		return fmt.Errorf("clear packages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO repositories (alias, revision, refreshed_at) VALUES (?, ?, ?)
		ON CONFLICT(alias) DO UPDATE SET revision = excluded.revision, refreshed_at = excluded.refreshed_at`,
		alias, revision, now.Unix()); err != nil {
		return fmt.Errorf("store repository: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO packages (alias, name, arch, epoch, version, release, summary, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range pkgs {
		if _, err := stmt.ExecContext(ctx, alias, p.Name, p.Arch, p.Epoch, p.Version, p.Release, p.Summary, p.Location); err != nil {
			return fmt.Errorf("store package %s: %w", p.NEVRA(), err)
		}
	}
	return tx.Commit()
}

// Packages returns the cached packages of alias ordered by name.
func (c *Cache) Packages(ctx context.Context, alias string) ([]metadata.Package, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT name, arch, epoch, version, release, summary, location
		FROM packages WHERE alias = ? ORDER BY name, arch`, alias)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metadata.Package
	for rows.Next() {
		var p metadata.Package
		if err := rows.Scan(&p.Name, &p.Arch, &p.Epoch, &p.Version, &p.Release, &p.Summary, &p.Location); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Status reports the last refresh of alias; ok is false if it never ran.
func (c *Cache) Status(ctx context.Context, alias string) (Status, bool, error) {
	var st Status
	var ts int64
	err := c.db.QueryRowContext(ctx, `
		SELECT r.alias, r.revision, r.refreshed_at,
			(SELECT COUNT(*) FROM packages p WHERE p.alias = r.alias)
		FROM repositories r WHERE r.alias = ?`, alias).Scan(&st.Alias, &st.Revision, &ts, &st.Packages)
	if errors.Is(err, sql.ErrNoRows) {
		return Status{}, false, nil
	}
	if err != nil {
		return Status{}, false, err
	}
	st.RefreshedAt = time.Unix(ts, 0).UTC()
	return st, true, nil
}

// Drop forgets everything cached for alias.
func (c *Cache) Drop(ctx context.Context, alias string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM packages WHERE alias = ?`, alias); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, `DELETE FROM repositories WHERE alias = ?`, alias)
	return err
}
