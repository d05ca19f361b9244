package migrations

import "embed"

// FS holds every embedded migration file, applied in lexical filename
// order by Store.runMigrations.
//
//go:embed *.sql
var FS embed.FS
