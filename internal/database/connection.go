// Package database provides the PostgreSQL connection and schema
// migration plumbing for the guideline rule store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// DB wraps a pooled sql.DB handle.
type DB struct {
	Conn *sql.DB
	log  *logrus.Logger
}

// NewConnection opens a pooled connection from a URL and verifies it.
func NewConnection(ctx context.Context, databaseURL string, logger *logrus.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("Database connection pool established")
	return &DB{Conn: conn, log: logger}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.Conn != nil {
		db.Conn.Close()
		db.log.Info("Database connection pool closed")
	}
}

// Health checks the database connection health.
func (db *DB) Health(ctx context.Context) error {
	return db.Conn.PingContext(ctx)
}
