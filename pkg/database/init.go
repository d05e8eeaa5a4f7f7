package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Alijeyrad/simorq_booking/config"
)

// InitializeDatabases creates the booking and casbin databases if they do
// not exist yet, connecting through the maintenance database "postgres".
// It returns the names it created.
func InitializeDatabases(ctx context.Context, cfg *config.Config) ([]string, error) {
	names := []string{cfg.Database.DBName}
	if n := cfg.CasbinDatabase.DBName; n != "" && n != cfg.Database.DBName {
		names = append(names, n)
	}
	if names[0] == "" {
		return nil, fmt.Errorf("database.dbname is empty")
	}

	admin := FromCentralConfig(cfg.Database)
	admin.DBName = "postgres"
	conn, err := openSQLDB(admin)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres database: %w", err)
	}
	defer conn.Close()

	var created []string
	for _, name := range names {
		ok, err := createDatabase(ctx, conn, name)
		if err != nil {
			return created, fmt.Errorf("create database %q: %w", name, err)
		}
		if ok {
			created = append(created, name)
		}
	}
	return created, nil
}

// createDatabase reports false when name already exists.
func createDatabase(ctx context.Context, conn *sql.DB, name string) (bool, error) {
	var exists bool
	err := conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil || exists {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = conn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name))
	return err == nil, err
}
