// Package migrations embeds the goose SQL migrations for both storage backends.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var all embed.FS

// SQLite returns the local cache migrations.
func SQLite() fs.FS { return sub("sqlite") }

// Postgres returns the remote store migrations.
func Postgres() fs.FS { return sub("postgres") }

func sub(dir string) fs.FS {
	f, err := fs.Sub(all, dir)
	if err != nil {
		panic(err) // embedded directory names are fixed at compile time
	}
	return f
}
