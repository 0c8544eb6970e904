// Package migrate applies the embedded goose migrations to the remote and local databases.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/wordkeeper/migrations"
)

// Up runs all pending Postgres migrations for the remote store.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = apply(ctx, goose.DialectPostgres, db, migrations.Postgres())
	return err
}

// UpSQLite brings the local cache schema to the latest version and returns it.
// Running it on an up-to-date database changes nothing.
func UpSQLite(ctx context.Context, db *sql.DB) (int64, error) {
	return apply(ctx, goose.DialectSQLite3, db, migrations.SQLite())
}

// VersionSQLite reports the schema version recorded in the local cache.
func VersionSQLite(ctx context.Context, db *sql.DB) (int64, error) {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.SQLite())
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

func apply(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) (int64, error) {
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("migrate: provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return 0, fmt.Errorf("migrate: up: %w", err)
	}
	return p.GetDBVersion(ctx)
}
