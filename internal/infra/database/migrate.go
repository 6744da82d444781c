package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/infra/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationDir = "migrations"

// Direction selects the goose command executed by Migrate.
type Direction string

const (
	MigrateUp     Direction = "up"
	MigrateDown   Direction = "down"
	MigrateStatus Direction = "status"
)

// OpenSQL opens a database/sql handle over the pgx stdlib driver for goose.
func OpenSQL(cfg config.PostgresSettings) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN()+"&search_path="+schemaOf(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sql: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded migrations. The schema is created first so the
// goose version table lives beside the tables it tracks.
func Migrate(ctx context.Context, db *sql.DB, cfg config.PostgresSettings, dir Direction, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	schema := schemaOf(cfg)
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", schema)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	goose.SetBaseFS(migrationFS)
	goose.SetTableName(schema + ".goose_db_version")
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	var err error
	switch dir {
	case MigrateUp:
		err = goose.UpContext(ctx, db, migrationDir)
	case MigrateDown:
		err = goose.DownContext(ctx, db, migrationDir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, db, migrationDir)
	default:
		return fmt.Errorf("unknown migration direction %q", dir)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", dir, err)
	}

	log.Info("migrations complete", zap.String("direction", string(dir)), zap.String("schema", schema))
	return nil
}
