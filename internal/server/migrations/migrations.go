// Package migrations embeds the goose migrations of the list server database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
