package clients

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Postgres owns the pgx pool. DB is a database/sql view over the same pool,
// used by the repositories.
type Postgres struct {
	Pool *pgxpool.Pool
	DB   *sql.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("[PostgresClient] failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("[PostgresClient] failed to ping PostgreSQL: %w", err)
	}

	slog.Info("[PostgresClient] Connected to PostgreSQL")
	return &Postgres{
		Pool: pool,
		DB:   stdlib.OpenDBFromPool(pool),
	}, nil
}

func (p *Postgres) Close() {
	if p == nil {
		return
	}
	if p.DB != nil {
		p.DB.Close()
	}
	if p.Pool != nil {
		p.Pool.Close()
	}
}
