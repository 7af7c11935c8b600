package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mkravets/shortener/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// New connects to PostgreSQL and applies the pool settings from cfg.
func New(ctx context.Context, cfg config.Postgres) (*sqlx.DB, error) {
	const op = "postgres.New"

	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	applyPoolSettings(db, cfg)

	return db, nil
}

func applyPoolSettings(db *sqlx.DB, cfg config.Postgres) {
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
}
