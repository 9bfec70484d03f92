package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/somatic-tier-classifier/internal/domain"
)

// DB wraps the sql.DB pool with additional functionality
type DB struct {
	SQL *sql.DB
	log *logrus.Logger
}

// NewConnection opens and pings a PostgreSQL connection pool
func NewConnection(ctx context.Context, config domain.StorageConfig, logger *logrus.Logger) (*DB, error) {
	if config.PostgresURL == "" {
		return nil, fmt.Errorf("postgres URL is required")
	}

	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Configure connection pool settings
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"max_open_conns": config.MaxOpenConns,
		"max_idle_conns": config.MaxIdleConns,
	}).Info("Database connection pool established")

	return &DB{
		SQL: db,
		log: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	if db.SQL == nil {
		return nil
	}
	err := db.SQL.Close()
	db.log.Info("Database connection pool closed")
	return err
}

// Health checks the database connection health
func (db *DB) Health(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}

// Stats returns connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.SQL.Stats()
}
