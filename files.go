package auth

import "embed"

// Schema migrations ship inside the package, with postgres and sqlite
// variants, so hosts run them through their own migrator at boot.
//
//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS exposes the embedded migration tree.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
