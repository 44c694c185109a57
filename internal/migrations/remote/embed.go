// Package remote embeds the server-side PostgreSQL schema migrations.
package remote

import "embed"

//go:embed *.sql
var Migrations embed.FS
