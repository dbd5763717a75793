package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Config holds the vector store connection settings.
type Config struct {
	URL                string `split_words:"true"`
	MaxConnections     int    `split_words:"true" default:"10"`
	MaxIdleConnections int    `split_words:"true" default:"2"`
}

// Enabled reports whether a vector database is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// New opens a pooled connection and pings it.
func (c Config) New(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(c.MaxConnections)
	db.SetMaxIdleConns(c.MaxIdleConnections)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
