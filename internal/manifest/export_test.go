package manifest

import (
	"database/sql"
	"errors"
)

// DB exposes the internal *sql.DB for test helpers in manifest_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// FailExec makes every subsequent write return err.
func (s *Store) FailExec(err error) {
	s.hooks.exec = func(execer, string, ...any) (sql.Result, error) {
		return nil, err
	}
}

// FailQuery makes every subsequent multi-row read return err.
func (s *Store) FailQuery(err error) {
	s.hooks.queryIt = func(queryer, string, ...any) (rowScanner, error) {
		return nil, err
	}
}

// SetOpenDB swaps the driver opener and returns a restore func.
func SetOpenDB(fn func(driver, dsn string) (*sql.DB, error)) func() {
	prev := openDB
	openDB = fn
	return func() { openDB = prev }
}

// ErrInjected is a canned failure for hook tests.
var ErrInjected = errors.New("injected")
