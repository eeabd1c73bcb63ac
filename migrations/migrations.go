// Package migrations embeds the schema shipped with attendo.
//
// Files ending in .pg.sql only apply to Postgres backends.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
