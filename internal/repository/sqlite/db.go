// Package sqlite implements the local cache repositories on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/migrate"
)

const driverName = "sqlite"

// keyFunc is the SQL name of foldKey. The built-in lower() folds ASCII only.
const keyFunc = "wk_key"

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
	if err := msqlite.RegisterDeterministicScalarFunction(keyFunc, 1, foldKeySQL); err != nil {
		panic(err)
	}
}

// foldKey normalizes one part of the duplicate key: trimmed and lower-cased in full Unicode.
func foldKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func foldKeySQL(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return foldKey(v), nil
	case []byte:
		return foldKey(string(v)), nil
	default:
		return v, nil
	}
}

// DB wraps the single cache connection shared by all repositories.
type DB struct {
	X *sqlx.DB
	// Now stamps updated_at on local writes. Tests replace it.
	Now func() time.Time
}

// Open opens (creating if needed) the cache file and migrates it to the current schema.
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errs.Storage("open", err)
		}
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	x, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, errs.Storage("open", err)
	}
	// One writer; every operation is serialized on the same connection.
	x.SetMaxOpenConns(1)
	x.SetMaxIdleConns(1)

	if _, err := migrate.UpSQLite(ctx, x.DB); err != nil {
		_ = x.Close()
		return nil, errs.Storage("migrate", err)
	}
	return &DB{X: x, Now: time.Now}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.X.Close() }

func (db *DB) now() time.Time {
	if db.Now == nil {
		return time.Now().UTC()
	}
	return db.Now().UTC()
}

// withTx runs fn in a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.X.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = e
		}
	}()
	return fn(tx)
}

// execIn runs a statement with an IN (?) list expanded from ids.
func execIn(ctx context.Context, ex sqlx.ExtContext, query string, args ...any) (sql.Result, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	return ex.ExecContext(ctx, ex.Rebind(q), a...)
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrNotFound
	}
	return err
}

// setList accumulates "col = ?" assignments for partial updates.
type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, v any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, v)
}

func (s *setList) String() string { return strings.Join(s.cols, ", ") }

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullUUID(u uuid.NullUUID) sql.NullString {
	if !u.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: u.UUID.String(), Valid: true}
}

func parseNullUUID(s sql.NullString) (uuid.NullUUID, error) {
	if !s.Valid || s.String == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.FromString(s.String)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func marshalJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}
