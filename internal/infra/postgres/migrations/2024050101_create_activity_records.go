package migrations

import (
	"context"
	"embed"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Migrations is the ordered set applied by the migrate command.
var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execFile(ctx, db, "sql/0001_create_activity_records.up.sql")
		},
		func(ctx context.Context, db *bun.DB) error {
			return execFile(ctx, db, "sql/0001_create_activity_records.down.sql")
		},
	)
}

func execFile(ctx context.Context, db *bun.DB, name string) error {
	query, err := sqlFiles.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if _, err := db.ExecContext(ctx, string(query)); err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}
	return nil
}
