package database

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the schema up to date using the embedded goose migrations.
func Migrate(db *sql.DB) (err error) {
	goose.SetBaseFS(migrations)

	if err = goose.SetDialect("postgres"); err != nil {
		return
	}

	err = goose.Up(db, "migrations")
	return
}
