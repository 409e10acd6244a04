package accounts

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS exposes the embedded per-dialect migration SQL so host
// applications can run it through their own migration tooling.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
