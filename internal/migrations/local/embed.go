// Package local embeds the device-local SQLite schema migrations.
package local

import "embed"

//go:embed *.sql
var Migrations embed.FS
