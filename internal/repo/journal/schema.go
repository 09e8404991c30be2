package journal

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Option настраивает PGStore при открытии.
type Option func(*options)

type options struct {
	migrate bool
}

// WithMigrations накатывает схему журнала сразу после подключения.
func WithMigrations() Option {
	return func(o *options) { o.migrate = true }
}

func migrations() (fs.FS, error) {
	return fs.Sub(migrationFiles, "migrations")
}

// Migrate поднимает схему журнала до последней версии через тот же пул соединений.
func (s *PGStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	fsys, err := migrations()
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("journal migrations: %w", err)
	}

	if _, err = provider.Up(ctx); err != nil {
		return fmt.Errorf("journal migrations: %w", err)
	}
	return nil
}
