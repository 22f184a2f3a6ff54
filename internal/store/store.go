// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package store is the SQLite-backed persistence layer: rules, executions,
// conflicts, probe stats, bandwidth/watch aggregates, the tag and
// normalization registries, and the journal event log (spec.md §6
// "Persisted state").
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tomtom215/dispatchctl/internal/logging"
)

// DB wraps the sqlite connection shared by every store implementation in
// this package (RuleStore, StatsStore, BandwidthStore all hold a *DB).
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the sqlite database at path, configures its
// connection pool and pragmas, and runs every pending migration.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("store: create database directory %s: %w", dir, err)
		}
	}

	// _pragma query params apply on every new connection modernc.org/sqlite
	// opens, which matters because database/sql pools multiple connections.
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	db := &DB{conn: conn, path: path}
	db.configureConnectionPool()

	if err := db.runMigrations(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return db, nil
}

// configureConnectionPool bounds the pool; sqlite serializes writers
// regardless, but readers benefit from a handful of idle connections.
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path, mainly for operator-facing logging.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}
	return ctx, func() {}
}

func logClose(name string, closer interface{ Close() error }) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Err(err).Str("resource", name).Msg("failed to close resource")
	}
}

func closeQuietly(closer interface{ Close() error }) {
	if closer != nil {
		_ = closer.Close()
	}
}
