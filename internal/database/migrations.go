package database

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsPath is the directory inside MigrationsFS holding the SQL files.
const MigrationsPath = "migrations"

// MigrationsFS returns the embedded schema migrations.
func MigrationsFS() fs.FS {
	return migrationsFS
}
