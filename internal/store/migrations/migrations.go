// Package migrations embeds the goose SQL migrations for the local store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
