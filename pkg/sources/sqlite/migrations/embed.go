package migrations

import "embed"

// FS contains the embedded SQLite migrations for site request storage.
//
//go:embed *.sql
var FS embed.FS
