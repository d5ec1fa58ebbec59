// Package manifest records expansion runs in a local SQLite database.
//
// Every call to the expander opens a run, appends one row per emitted
// scenario and closes the run with its final status. The store is an
// optional subsystem: callers keep working without it.
package manifest

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("manifest: run not found")

// ─── Types ───────────────────────────────────────────────────────────────────

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run is one invocation of the expander.
type Run struct {
	ID            string    `json:"id"`
	Experiment    string    `json:"experiment"`
	Source        string    `json:"source,omitempty"`
	OutputDir     string    `json:"output_dir"`
	Seeded        bool      `json:"seeded"`
	Status        RunStatus `json:"status"`
	ScenarioCount int       `json:"scenario_count"`
	Error         *string   `json:"error,omitempty"`
	StartedAt     string    `json:"started_at"`
	FinishedAt    *string   `json:"finished_at,omitempty"`
}

// ScenarioRecord is one emitted scenario of a run.
type ScenarioRecord struct {
	ID         int64             `json:"id"`
	RunID      string            `json:"run_id"`
	Index      int               `json:"index"`
	File       string            `json:"file"`
	Seed       *int64            `json:"seed,omitempty"`
	Parameters map[string]string `json:"parameters"`
	Digest     string            `json:"digest"`
	CreatedAt  string            `json:"created_at"`
}

// CreateRunParams holds input for opening a run.
type CreateRunParams struct {
	Experiment string `json:"experiment"`
	Source     string `json:"source,omitempty"`
	OutputDir  string `json:"output_dir"`
	Seeded     bool   `json:"seeded"`
}

// AddScenarioParams holds input for recording one scenario.
type AddScenarioParams struct {
	RunID      string            `json:"run_id"`
	Index      int               `json:"index"`
	File       string            `json:"file"`
	Seed       *int64            `json:"seed,omitempty"`
	Parameters map[string]string `json:"parameters"`
	Document   string            `json:"-"`
}

// Stats summarizes the store contents.
type Stats struct {
	TotalRuns      int `json:"total_runs"`
	CompletedRuns  int `json:"completed_runs"`
	FailedRuns     int `json:"failed_runs"`
	TotalScenarios int `json:"total_scenarios"`
}

// ExportData is a JSON-ready snapshot of one run.
type ExportData struct {
	Version    string           `json:"version"`
	ExportedAt string           `json:"exported_at"`
	Run        Run              `json:"run"`
	Scenarios  []ScenarioRecord `json:"scenarios"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store settings.
type Config struct {
	DataDir       string
	MaxRecentRuns int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:       filepath.Join(home, ".omsweep"),
		MaxRecentRuns: 20,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the run manifest backed by SQLite.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type sqlRowScanner struct {
	rows *sql.Rows
}

func (r sqlRowScanner) Next() bool             { return r.rows.Next() }
func (r sqlRowScanner) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r sqlRowScanner) Err() error             { return r.rows.Err() }
func (r sqlRowScanner) Close() error           { return r.rows.Close() }

type storeHooks struct {
	exec    func(db execer, query string, args ...any) (sql.Result, error)
	queryIt func(db queryer, query string, args ...any) (rowScanner, error)
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(db execer, query string, args ...any) (sql.Result, error) {
			return db.Exec(query, args...)
		},
		queryIt: func(db queryer, query string, args ...any) (rowScanner, error) {
			rows, err := db.Query(query, args...)
			if err != nil {
				return nil, err
			}
			return sqlRowScanner{rows: rows}, nil
		},
	}
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) queryItHook(db queryer, query string, args ...any) (rowScanner, error) {
	if s.hooks.queryIt != nil {
		return s.hooks.queryIt(db, query, args...)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRowScanner{rows: rows}, nil
}

// New opens (or creates) the manifest database under cfg.DataDir.
func New(cfg Config) (*Store, error) {
	if cfg.MaxRecentRuns <= 0 {
		cfg.MaxRecentRuns = DefaultConfig().MaxRecentRuns
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("manifest: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "manifest.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("manifest: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, hooks: defaultStoreHooks()}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("manifest: migration: %w", err)
	}

	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Config returns the store configuration.
func (s *Store) Config() Config {
	return s.cfg
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			experiment     TEXT NOT NULL,
			source         TEXT NOT NULL DEFAULT '',
			output_dir     TEXT NOT NULL,
			seeded         INTEGER NOT NULL DEFAULT 0,
			status         TEXT NOT NULL DEFAULT 'running',
			scenario_count INTEGER NOT NULL DEFAULT 0,
			error          TEXT,
			started_at     TEXT NOT NULL DEFAULT (datetime('now')),
			finished_at    TEXT
		);

		CREATE TABLE IF NOT EXISTS scenarios (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx        INTEGER NOT NULL,
			file       TEXT    NOT NULL,
			seed       INTEGER,
			parameters TEXT    NOT NULL DEFAULT '{}',
			digest     TEXT    NOT NULL,
			created_at TEXT    NOT NULL DEFAULT (datetime('now')),
			UNIQUE (run_id, idx)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_scenarios_run ON scenarios(run_id, idx);
	`
	_, err := s.execHook(s.db, schema)
	return err
}

// ─── Runs ────────────────────────────────────────────────────────────────────

// CreateRun opens a new run in the running state and returns its id.
func (s *Store) CreateRun(p CreateRunParams) (string, error) {
	id := uuid.NewString()
	_, err := s.execHook(s.db,
		`INSERT INTO runs (id, experiment, source, output_dir, seeded, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, p.Experiment, p.Source, p.OutputDir, boolInt(p.Seeded), string(StatusRunning),
	)
	if err != nil {
		return "", fmt.Errorf("manifest: create run: %w", err)
	}
	return id, nil
}

// FinishRun closes a run. A nil runErr marks it completed, anything else failed.
func (s *Store) FinishRun(id string, count int, runErr error) error {
	status := StatusCompleted
	var msg *string
	if runErr != nil {
		status = StatusFailed
		m := runErr.Error()
		msg = &m
	}
	res, err := s.execHook(s.db,
		`UPDATE runs
		 SET status = ?, scenario_count = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		string(status), count, msg, Now(), id,
	)
	if err != nil {
		return fmt.Errorf("manifest: finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun returns a single run by id.
func (s *Store) GetRun(id string) (*Run, error) {
	rows, err := s.queryItHook(s.db, runSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("manifest: get run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("manifest: get run: %w", err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return &runs[0], nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = s.cfg.MaxRecentRuns
	}
	rows, err := s.queryItHook(s.db,
		runSelect+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("manifest: recent runs: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("manifest: recent runs: %w", err)
	}
	return runs, nil
}

const runSelect = `SELECT id, experiment, source, output_dir, seeded, status,
	scenario_count, error, started_at, finished_at FROM runs`

func scanRuns(rows rowScanner) ([]Run, error) {
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var seeded int
		var status string
		if err := rows.Scan(
			&r.ID, &r.Experiment, &r.Source, &r.OutputDir, &seeded, &status,
			&r.ScenarioCount, &r.Error, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		r.Seeded = seeded != 0
		r.Status = RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ─── Scenarios ───────────────────────────────────────────────────────────────

// AddScenario records one emitted scenario. The document itself is not
// stored, only its sha256 digest.
func (s *Store) AddScenario(p AddScenarioParams) (int64, error) {
	params := p.Parameters
	if params == nil {
		params = map[string]string{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("manifest: encode parameters: %w", err)
	}

	res, err := s.execHook(s.db,
		`INSERT INTO scenarios (run_id, idx, file, seed, parameters, digest)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.RunID, p.Index, p.File, p.Seed, string(encoded), Digest(p.Document),
	)
	if err != nil {
		return 0, fmt.Errorf("manifest: add scenario: %w", err)
	}
	return res.LastInsertId()
}

// RunScenarios returns the scenarios of a run ordered by index.
func (s *Store) RunScenarios(runID string) ([]ScenarioRecord, error) {
	rows, err := s.queryItHook(s.db,
		`SELECT id, run_id, idx, file, seed, parameters, digest, created_at
		 FROM scenarios WHERE run_id = ? ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("manifest: run scenarios: %w", err)
	}
	defer rows.Close()

	var out []ScenarioRecord
	for rows.Next() {
		var rec ScenarioRecord
		var params string
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Index, &rec.File, &rec.Seed,
			&params, &rec.Digest, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("manifest: run scenarios: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &rec.Parameters); err != nil {
			return nil, fmt.Errorf("manifest: decode parameters of scenario %d: %w", rec.Index, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("manifest: run scenarios: %w", err)
	}
	return out, nil
}

// ─── Stats & Export ──────────────────────────────────────────────────────────

// Stats returns aggregate counts.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM runs", &stats.TotalRuns},
		{"SELECT COUNT(*) FROM runs WHERE status = 'completed'", &stats.CompletedRuns},
		{"SELECT COUNT(*) FROM runs WHERE status = 'failed'", &stats.FailedRuns},
		{"SELECT COUNT(*) FROM scenarios", &stats.TotalScenarios},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("manifest: stats: %w", err)
		}
	}
	return stats, nil
}

// Export returns a run together with all of its scenarios.
func (s *Store) Export(runID string) (*ExportData, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	scenarios, err := s.RunScenarios(runID)
	if err != nil {
		return nil, err
	}
	if scenarios == nil {
		scenarios = []ScenarioRecord{}
	}
	return &ExportData{
		Version:    "1",
		ExportedAt: Now(),
		Run:        *run,
		Scenarios:  scenarios,
	}, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// Digest returns the hex sha256 of a scenario document.
func Digest(document string) string {
	h := sha256.Sum256([]byte(document))
	return hex.EncodeToString(h[:])
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
