package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/udisondev/regionvision/internal/db/migrations"
)

// goose keeps its dialect and FS in package globals.
var gooseMu sync.Mutex

// RunMigrations applies the embedded migrations for dialect ("postgres" or
// "sqlite3") from the matching directory.
func RunMigrations(ctx context.Context, sqlDB *sql.DB, dialect string) error {
	dir, ok := map[string]string{
		"postgres": "postgres",
		"sqlite3":  "sqlite",
	}[dialect]
	if !ok {
		return fmt.Errorf("running migrations: unsupported dialect %q", dialect)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
