// internal/common/database/postgres.go
package database

import (
	"database/sql"
	"fmt"
	"time"

	"farm-copilot/internal/common/config"

	_ "github.com/lib/pq"
)

// NewPostgres opens the read-only advisory database pool.
func NewPostgres(cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
