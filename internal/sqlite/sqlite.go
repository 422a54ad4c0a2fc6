// Package sqlite opens the game database and keeps its schema in sync with schema.sql.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3" // Enable sqlite3 driver
	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/random"
)

//go:embed schema.sql
var schemaDefinition string

type Database struct {
	ReadWrite *sql.DB
	ReadOnly  *sql.DB
	logger    *slog.Logger
}

// NewDatabase connects to the database at url, synchronizes the schema and starts the background optimizer, which
// stops when ctx is done.
//
// The url parameter is the path to the SQLite database file or ":memory:" for an in-memory database.
func NewDatabase(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	db, err := connect(url, logger)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err = db.migrateTo(ctx, schemaDefinition); err != nil {
		return nil, errors.Wrap(err, "synchronize schema")
	}
	go db.startOptimizer(ctx)
	return db, nil
}

// connect opens one single-connection pool for writes and one pool for concurrent reads.
// See https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995.
func connect(url string, logger *slog.Logger) (*Database, error) {
	// In-memory databases need shared cache so that both pools see the same data. Each gets a random name so that
	// parallel tests stay isolated. See https://www.sqlite.org/inmemorydb.html.
	readWriteMode, readMode, cache := "rwc", "ro", ""
	if strings.Contains(url, ":memory:") {
		const nameLength = 20
		name, err := random.Letters(nameLength)
		if err != nil {
			return nil, errors.Wrap(err, "generate in-memory database name")
		}
		url = name
		readWriteMode, readMode, cache = "memory", "memory", "&cache=shared"
	}

	// Options prefixed with underscore are pragmas, see https://www.sqlite.org/pragma.html.
	commonConfig := strings.Join([]string{
		"_journal_mode=wal",
		"_busy_timeout=5000",
		"_synchronous=normal",
		"_foreign_keys=on",
		"_temp_store=memory",
		// See https://www.sqlite.org/pragma.html#pragma_optimize.
		"_optimize=0x10002",
	}, "&")

	readWriteConfig := fmt.Sprintf("file:%s?mode=%s&_txlock=immediate&%s%s", url, readWriteMode, commonConfig, cache)
	readConfig := fmt.Sprintf("file:%s?mode=%s&_txlock=deferred&_query_only=true&%s%s", url, readMode, commonConfig,
		cache)

	readWrite, err := sql.Open("sqlite3", readWriteConfig)
	if err != nil {
		return nil, errors.Wrap(err, "open read-write database")
	}
	readWrite.SetMaxOpenConns(1)
	readWrite.SetMaxIdleConns(1)
	readWrite.SetConnMaxLifetime(time.Hour)
	readWrite.SetConnMaxIdleTime(time.Hour)

	readOnly, err := sql.Open("sqlite3", readConfig)
	if err != nil {
		return nil, errors.Wrap(err, "open read-only database")
	}
	const maxReadConns = 10
	readOnly.SetMaxOpenConns(maxReadConns)
	readOnly.SetMaxIdleConns(maxReadConns)
	readOnly.SetConnMaxLifetime(time.Hour)
	readOnly.SetConnMaxIdleTime(time.Hour)

	// Keep the in-memory database alive and fail early on a bad url.
	if err = readWrite.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping read-write database")
	}

	return &Database{
		ReadWrite: readWrite,
		ReadOnly:  readOnly,
		logger:    logger.With("source", "sqlite"),
	}, nil
}

// Close closes both connection pools.
func (db *Database) Close() error {
	return errors.Join(db.ReadOnly.Close(), db.ReadWrite.Close())
}
