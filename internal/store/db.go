// Package store is the SQLite-backed reference adapter for every §6 port:
// EventStore, ConfigStore, AnnotationRepo, AssignmentRepo, UserDirectory,
// and the goal tracker's GoalRepo/AnnotationSource/GoalStore. It follows
// the teacher's internal/db package for connection setup and write
// serialization, with hand-written SQL in place of the teacher's
// sqlc-generated queries package: sqlc is a build-time code generator, not
// a runtime dependency, and its output isn't present anywhere in the
// retrieval pack to adapt.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a single SQLite connection pool, tuned exactly like the
// teacher's internal/db/db.go: WAL journaling, a generous busy timeout, and
// a page cache sized for a single-process workload.
type DB struct {
	conn *sql.DB
}

// Open connects to (creating if needed) the SQLite database at path,
// applying the same PRAGMA tuning as internal/db/db.go.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create database directory %s: %w", dir, err)
			}
		}
	}

	const maxAttempts = 5
	const baseDelay = 100 * time.Millisecond

	var conn *sql.DB
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		conn, err = sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("store: open database: %w", err)
		}
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)

		if err = conn.Ping(); err == nil {
			break
		}
		conn.Close()
		if attempt == maxAttempts-1 {
			return nil, fmt.Errorf("store: ping database after %d attempts: %w", maxAttempts, err)
		}
		time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("store: apply %q: %w", pragma, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Conn() *sql.DB { return db.conn }

func (db *DB) Close() error {
	db.conn.SetMaxOpenConns(0)
	db.conn.SetMaxIdleConns(0)
	db.conn.SetConnMaxLifetime(0)
	return db.conn.Close()
}

// writeMutex serializes every SQLite write across every repo in this
// package, the same global-mutex discipline as internal/db/sqlite_lock.go:
// SQLite allows exactly one writer at a time even under WAL, so every
// INSERT/UPDATE/DELETE in this package acquires it first.
var writeMutex sync.Mutex

func withWriteLock(fn func() error) error {
	writeMutex.Lock()
	defer writeMutex.Unlock()
	return fn()
}
