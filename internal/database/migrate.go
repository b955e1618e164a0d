package database

import (
	"context"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
	"github.com/samber/oops"
)

// Migrator runs goose migrations from an embedded filesystem. A Postgres
// advisory lock keeps concurrent deploys from migrating at the same time.
type Migrator struct {
	pool   *pgxpool.Pool
	fsys   fs.FS
	logger *slog.Logger
}

func NewMigrator(pool *pgxpool.Pool, fsys fs.FS, logger *slog.Logger) *Migrator {
	return &Migrator{pool: pool, fsys: fsys, logger: logger}
}

func (m *Migrator) provider() (*goose.Provider, func(), error) {
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return nil, nil, oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	db := stdlib.OpenDBFromPool(m.pool)
	p, err := goose.NewProvider(goose.DialectPostgres, db, m.fsys, goose.WithSessionLocker(locker))
	if err != nil {
		_ = db.Close()
		return nil, nil, oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	return p, func() { _ = db.Close() }, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	p, done, err := m.provider()
	if err != nil {
		return err
	}
	defer done()

	results, err := p.Up(ctx)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
	}
	for _, r := range results {
		m.logger.InfoContext(ctx, "migration applied",
			"version", r.Source.Version,
			"path", r.Source.Path,
			"duration", r.Duration,
		)
	}
	if len(results) == 0 {
		m.logger.InfoContext(ctx, "schema up to date")
	}
	return nil
}

// MigrationStatus is one row of Status output.
type MigrationStatus struct {
	Version int64
	Path    string
	Applied bool
}

func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	p, done, err := m.provider()
	if err != nil {
		return nil, err
	}
	defer done()

	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, oops.Code("MIGRATION_FAILED").With("operation", "status").Wrap(err)
	}
	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}
