package auth

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS exposes the embedded DDL for the users, sessions and
// confirmations tables so applications can feed it to their migration runner.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
