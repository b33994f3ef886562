// Package dbmigrations exposes embedded SQL migrations for the journal.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into the ladder binary.
//
//go:embed *.sql
var Files embed.FS
