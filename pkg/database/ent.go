package database

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

// NewEntClient opens the booking store from central config.
func NewEntClient(cfg config.DatabaseConfig) (*repo.Client, error) {
	return NewEntClientFromConfig(FromCentralConfig(cfg))
}

func NewEntClientFromConfig(cfg Config) (*repo.Client, error) {
	db, err := openSQLDB(cfg)
	if err != nil {
		return nil, err
	}

	var drv dialect.Driver = entsql.OpenDB(dialect.Postgres, db)
	if cfg.LogQueries {
		drv = dialect.DebugWithContext(drv, func(ctx context.Context, args ...any) {
			slog.DebugContext(ctx, "sql", "query", fmt.Sprint(args...))
		})
	}
	client := repo.NewClient(repo.Driver(drv))

	if cfg.AutoMigrate {
		if err := Migrate(context.Background(), client); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

// Migrate creates or extends the booking tables.
func Migrate(ctx context.Context, client *repo.Client) error {
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
