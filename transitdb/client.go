// Package transitdb provides append-only SQLite persistence for vehicle and
// weather observations, plus the read-only analytical queries that run over
// the accumulated log.
package transitdb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver
	"transitpulse.dev/internal/appconf"
)

//go:embed schema.sql
var ddl string

// Client is the main entry point for the storage layer.
type Client struct {
	config  Config
	DB      *sql.DB
	Queries *Queries
}

// NewClient opens (creating if necessary) the database at the configured
// path and applies the schema. Schema creation is idempotent and safe to
// run on every process start.
func NewClient(config Config) (*Client, error) {
	db, err := createDB(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create DB: %w", err)
	}

	return &Client{
		config:  config,
		DB:      db,
		Queries: New(db),
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) GetDBPath() string {
	return c.config.DBPath
}

func createDB(config Config) (*sql.DB, error) {
	if config.Env == appconf.Test && config.DBPath != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", config.DBPath)
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := configureSQLite(ctx, db, config); err != nil {
		return nil, fmt.Errorf("error configuring SQLite: %w", err)
	}

	if err := performDatabaseMigration(ctx, db); err != nil {
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	configureConnectionPool(db, config)

	return db, nil
}

func configureSQLite(ctx context.Context, db *sql.DB, config Config) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	// WAL keeps readers from blocking the single writer; it is a no-op for
	// in-memory databases. Synchronous FULL preserves the durability
	// guarantee of the append path: data survives a crash immediately
	// after a successful return.
	if config.DBPath != ":memory:" {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = FULL",
		)
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("error executing %q: %w", pragma, err)
		}
	}
	return nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	statements := strings.Split(ddl, "-- migrate") // Split DDL into individual statements
	for _, stmt := range statements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmedStmt); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmedStmt, err)
		}
	}
	return nil
}

func configureConnectionPool(db *sql.DB, config Config) {
	if config.DBPath == ":memory:" {
		// Each connection to ":memory:" opens a distinct database, so the
		// pool must never grow beyond one connection.
		db.SetMaxOpenConns(1)
		return
	}
	// One writer plus occasional batch readers.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
}
