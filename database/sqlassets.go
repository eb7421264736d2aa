package sqlassets

import "embed"

// Migrations embeds the goose migration files applied at startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS
