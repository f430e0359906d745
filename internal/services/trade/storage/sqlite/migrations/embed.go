package migrations

import "embed"

// FS contains embedded SQLite migrations for trade storage.
//
//go:embed *.sql
var FS embed.FS
