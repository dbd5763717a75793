package sqlite

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go driver registered as "sqlite"
)

// Config describes a read-mostly SQLite lookup database.
type Config struct {
	Path         string        `split_words:"true"`
	BusyTimeout  time.Duration `split_words:"true" default:"5s"`
	MaxOpenConns int           `split_words:"true" default:"4"`
}

// DSN builds a modernc DSN with busy timeout and read-only query_only pragma.
// ":memory:" is passed through untouched so tests can seed an in-process database.
func (c Config) DSN() string {
	if c.Path == ":memory:" {
		return c.Path
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=query_only(1)",
		c.Path, c.BusyTimeout.Milliseconds())
}

// Open connects to the database and verifies it with a ping.
func (c Config) Open() (*sqlx.DB, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	db, err := sqlx.Open("sqlite", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	maxOpen := c.MaxOpenConns
	if maxOpen <= 0 || c.Path == ":memory:" {
		// every pooled connection to :memory: would see its own empty database
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return db, nil
}
