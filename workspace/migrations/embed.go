// Package migrations embeds the workspace schema.
package migrations

import "embed"

// FS holds the NNN_name.{up,down}.sql files, at its root.
//
//go:embed *.sql
var FS embed.FS
