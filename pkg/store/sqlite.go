package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wildfunctions/acme/pkg/fitness"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, scope, started, config, best_genes, best_fitness, evaluations)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scope = excluded.scope,
			started = excluded.started,
			config = excluded.config,
			best_genes = excluded.best_genes,
			best_fitness = excluded.best_fitness,
			evaluations = excluded.evaluations
	`, run.ID, run.Scope, run.Started.UTC().Format(time.RFC3339Nano), run.Config,
		run.BestGenes, nullable(run.BestFitness), run.Evaluations)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	var (
		run     Run
		started string
		best    sql.NullFloat64
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, scope, started, config, best_genes, best_fitness, evaluations
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Scope, &started, &run.Config, &run.BestGenes, &best, &run.Evaluations)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	run.Started, err = time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, false, err
	}
	run.BestFitness = fromNullable(best)
	return run, true, nil
}

func (s *SQLiteStore) SaveEntries(ctx context.Context, scope, runID string, entries []fitness.Entry) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (scope, key, effective, likelihood, run_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET
			effective = excluded.effective,
			likelihood = excluded.likelihood,
			run_id = excluded.run_id
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, scope, e.Key, e.Effective, nullable(e.Likelihood), runID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadEntries(ctx context.Context, scope string) ([]fitness.Entry, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT key, effective, likelihood FROM entries WHERE scope = ? ORDER BY key
	`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fitness.Entry
	for rows.Next() {
		var (
			e fitness.Entry
			l sql.NullFloat64
		)
		if err := rows.Scan(&e.Key, &e.Effective, &l); err != nil {
			return nil, err
		}
		e.Likelihood = fromNullable(l)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

// nullable stores unusable likelihoods as NULL.
func nullable(l fitness.Likelihood) any {
	if !l.Usable() || math.IsInf(float64(l), 0) {
		return nil
	}
	return float64(l)
}

func fromNullable(v sql.NullFloat64) fitness.Likelihood {
	if !v.Valid {
		return fitness.Unusable()
	}
	return fitness.Likelihood(v.Float64)
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			scope TEXT NOT NULL,
			started TEXT NOT NULL,
			config BLOB,
			best_genes TEXT NOT NULL,
			best_fitness REAL,
			evaluations INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS entries (
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			effective TEXT NOT NULL,
			likelihood REAL,
			run_id TEXT NOT NULL,
			PRIMARY KEY (scope, key)
		);
	`)
	return err
}
