// Package sqlite provides the registry's embedded relational store and its
// schema migrator.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// InmemPath is the path to use to open an in-memory database, shared
	// across connections for the life of the process.
	InmemPath = ":memory:"

	migrationsTableName = "migrations"
)

// SqlStore wraps the database handle shared by the store and the migrator.
//
// sqlite allows a single writer at a time. Mu serializes multi-statement
// writes at the application level so concurrent transactions fail fast in Go
// rather than timing out inside sqlite.
type SqlStore struct {
	Mu   sync.RWMutex
	DB   *sqlx.DB
	log  *zap.Logger
	path string
}

// NewSqlStore opens (creating if necessary) the database at path.
func NewSqlStore(path string, log *zap.Logger) (*SqlStore, error) {
	s, err := newSqlStore(path, log)
	if err != nil {
		return nil, err
	}

	// in-memory databases hold their data only as long as one connection
	// remains open; file databases gain nothing from extra connections
	// because of the single-writer rule.
	s.DB.SetMaxOpenConns(1)
	s.DB.SetMaxIdleConns(1)

	return s, nil
}

func newSqlStore(path string, log *zap.Logger) (*SqlStore, error) {
	dsn := path
	if path == InmemPath {
		// allow the test suite to open several handles onto one shared
		// in-memory database
		dsn = "file::memory:?cache=shared"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, err
	}

	log.Info("Resources opened", zap.String("path", path))

	return &SqlStore{
		DB:   db,
		log:  log,
		path: path,
	}, nil
}

// Close the connection to the sqlite database.
func (s *SqlStore) Close() error {
	return s.DB.Close()
}

// userVersion returns the sqlite user_version pragma, the migration watermark.
func (s *SqlStore) userVersion() (int, error) {
	var v int
	if err := s.DB.Get(&v, "PRAGMA user_version"); err != nil {
		return 0, err
	}
	return v, nil
}

// execTrans executes a possibly multi-statement script in a single
// transaction.
func (s *SqlStore) execTrans(ctx context.Context, stmt string) error {
	// use a lock to prevent two potential simultaneous write operations to
	// the database, which would throw an error
	s.Mu.Lock()
	defer s.Mu.Unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Flush deletes all records from all tables except the migrations table.
// Used by tests to reset state between cases.
func (s *SqlStore) Flush(ctx context.Context) {
	tables, err := s.tableNames()
	if err != nil {
		s.log.Fatal("unable to flush sqlite", zap.Error(err))
	}

	for _, t := range tables {
		if t == migrationsTableName {
			continue
		}

		stmt := fmt.Sprintf("DELETE FROM %s", t)
		if err := s.execTrans(ctx, stmt); err != nil {
			s.log.Fatal("unable to flush sqlite", zap.Error(err))
		}
	}
	s.log.Debug("Resources flushed", zap.String("path", s.path))
}

func (s *SqlStore) tableNames() ([]string, error) {
	var names []string
	err := s.DB.Select(&names, "SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return names, nil
}

// queryToStrings is a test helper scanning a single-column query into strings.
func (s *SqlStore) queryToStrings(stmt string) ([]string, error) {
	var vals []string
	if err := s.DB.Select(&vals, stmt); err != nil {
		return nil, err
	}
	return vals, nil
}
