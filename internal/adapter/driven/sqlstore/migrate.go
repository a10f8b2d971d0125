package sqlstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrate applies the *.sql files under dir in fsys through a dialect's
// migrate driver. Already-applied migrations are skipped.
func Migrate(fsys fs.FS, dir, dialect string, driver database.Driver) error {
	source, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run %s migrations: %w", dialect, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read %s schema version: %w", dialect, err)
	}
	if dirty {
		return fmt.Errorf("%s schema version %d is dirty", dialect, version)
	}
	slog.Debug("schema up to date", "dialect", dialect, "version", version)

	return nil
}
