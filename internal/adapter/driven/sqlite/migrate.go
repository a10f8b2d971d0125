package sqlite

import (
	"database/sql"
	"embed"
	"fmt"

	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"

	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations brings the ledger schema up to date on the writer connection.
func RunMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}
	return sqlstore.Migrate(migrationsFS, "migrations", "sqlite", driver)
}
