package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/karthik11135/tardis/internal/models"
)

// ErrRunNotFound is returned when a run ID does not exist in the store.
var ErrRunNotFound = errors.New("store: run not found")

// RunStore persists runs and their iteration records in SQLite.
// It is safe for concurrent use.
type RunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// Open creates a RunStore rooted at root. The database lives at
// .tardis/tardis.db, created on first use.
func Open(root string) (*RunStore, error) {
	dir := LocalTardisPath(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .tardis directory: %w", err)
	}

	dbPath := filepath.Join(dir, "tardis.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &RunStore{db: db, dbPath: dbPath}, nil
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// CreateRun registers a new run in the "running" state and returns its
// summary. The config snapshot is stored verbatim.
func (s *RunStore) CreateRun(ctx context.Context, configJSON string, zones int) (models.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := models.RunSummary{
		ID:          uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		Status:      models.StatusRunning,
		ConvergedAt: -1,
		Zones:       zones,
		ConfigJSON:  configJSON,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, converged_at, zones, config)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Format(time.RFC3339Nano), string(run.Status),
		run.ConvergedAt, run.Zones, run.ConfigJSON)
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

// AppendIteration stores one iteration record and bumps the run's
// iteration count.
func (s *RunStore) AppendIteration(ctx context.Context, runID string, rec models.IterationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tRad, err := json.Marshal(rec.Observables.TRad)
	if err != nil {
		return fmt.Errorf("marshal t_rad: %w", err)
	}
	w, err := json.Marshal(rec.Observables.W)
	if err != nil {
		return fmt.Errorf("marshal w: %w", err)
	}
	tRadEst, err := json.Marshal(rec.TRadEstimate)
	if err != nil {
		return fmt.Errorf("marshal t_rad estimate: %w", err)
	}
	wEst, err := json.Marshal(rec.WEstimate)
	if err != nil {
		return fmt.Errorf("marshal w estimate: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	converged := 0
	if rec.ConvergedNow {
		converged = 1
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET iterations = iterations + 1, zones = ? WHERE id = ?`,
		rec.Observables.Zones(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO iterations (run_id, idx, t_rad, w, t_rad_estimate, w_estimate,
		   t_inner, t_inner_estimate, next_t_inner, emitted, absorbed, requested,
		   converged, hold_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Index, string(tRad), string(w), string(tRadEst), string(wEst),
		rec.Observables.TInner, rec.TInnerEstimate, rec.NextTInner,
		rec.Observables.EmittedLuminosity, rec.Observables.AbsorbedLuminosity,
		rec.Observables.RequestedLuminosity, converged, rec.HoldCount)
	if err != nil {
		return fmt.Errorf("failed to insert iteration: %w", err)
	}

	return tx.Commit()
}

// FinishRun marks a run's final status, finish time, and the iteration at
// which convergence was accepted (-1 if never).
func (s *RunStore) FinishRun(ctx context.Context, runID string, status models.RunStatus, convergedAt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, converged_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), string(status), convergedAt, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun returns a single run summary.
func (s *RunStore) GetRun(ctx context.Context, runID string) (models.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, status, iterations, converged_at, zones, config
		 FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RunSummary{}, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns run summaries newest first, capped at limit
// (0 means no cap).
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, started_at, finished_at, status, iterations, converged_at, zones, config
	          FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Iterations returns all iteration records for a run in order.
func (s *RunStore) Iterations(ctx context.Context, runID string) ([]models.IterationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, t_rad, w, t_rad_estimate, w_estimate, t_inner, t_inner_estimate,
		   next_t_inner, emitted, absorbed, requested, converged, hold_count
		 FROM iterations WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterations: %w", err)
	}
	defer rows.Close()

	var recs []models.IterationRecord
	for rows.Next() {
		var rec models.IterationRecord
		var tRad, w, tRadEst, wEst string
		var converged int
		if err := rows.Scan(&rec.Index, &tRad, &w, &tRadEst, &wEst,
			&rec.Observables.TInner, &rec.TInnerEstimate, &rec.NextTInner,
			&rec.Observables.EmittedLuminosity, &rec.Observables.AbsorbedLuminosity,
			&rec.Observables.RequestedLuminosity, &converged, &rec.HoldCount); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		if err := json.Unmarshal([]byte(tRad), &rec.Observables.TRad); err != nil {
			return nil, fmt.Errorf("unmarshal t_rad: %w", err)
		}
		if err := json.Unmarshal([]byte(w), &rec.Observables.W); err != nil {
			return nil, fmt.Errorf("unmarshal w: %w", err)
		}
		if err := json.Unmarshal([]byte(tRadEst), &rec.TRadEstimate); err != nil {
			return nil, fmt.Errorf("unmarshal t_rad estimate: %w", err)
		}
		if err := json.Unmarshal([]byte(wEst), &rec.WEstimate); err != nil {
			return nil, fmt.Errorf("unmarshal w estimate: %w", err)
		}
		rec.ConvergedNow = converged != 0
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (models.RunSummary, error) {
	var run models.RunSummary
	var startedAt string
	var finishedAt sql.NullString
	var status string
	var config sql.NullString

	if err := row.Scan(&run.ID, &startedAt, &finishedAt, &status,
		&run.Iterations, &run.ConvergedAt, &run.Zones, &config); err != nil {
		return models.RunSummary{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("failed to parse started_at: %w", err)
	}
	run.StartedAt = t

	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return models.RunSummary{}, fmt.Errorf("failed to parse finished_at: %w", err)
		}
		run.FinishedAt = t
	}

	run.Status = models.RunStatus(status)
	run.ConfigJSON = config.String
	return run, nil
}
