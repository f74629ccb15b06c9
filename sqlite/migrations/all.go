// Package migrations contains the embedded DDL scripts applied by the
// sqlite.Migrator at startup.
package migrations

import "embed"

//go:embed *.sql
var All embed.FS
