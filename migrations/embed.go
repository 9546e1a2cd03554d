// Package migrations embeds the base-schema migration files for the tiered
// table store. Applied through golang-migrate at run startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
