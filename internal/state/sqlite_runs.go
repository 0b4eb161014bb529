package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CreateRun records the start of a run and returns it with a fresh ID.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) (*Run, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	created := *run
	created.ID = generateID()
	created.Status = RunStatusRunning
	created.StartedAt = time.Now().UTC()
	created.CompletedAt = nil
	if created.Parameters == nil {
		created.Parameters = map[string]string{}
	}

	params, err := json.Marshal(created.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run parameters: %w", err)
	}

	s.logger.Debug("creating run",
		slog.String("id", created.ID),
		slog.String("template", created.TemplateName),
		slog.String("source", created.Source))

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, template_name, template_version, source, parameters, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.TemplateName, created.TemplateVersion, created.Source,
		string(params), string(created.Status), created.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return &created, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	var errValue sql.NullString
	if errMsg != "" {
		errValue = sql.NullString{String: errMsg, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), errValue, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

const runColumns = `id, template_name, template_version, source, parameters, status, started_at, completed_at, error`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run         Run
		status      string
		params      string
		completedAt sql.NullTime
		errMsg      sql.NullString
	)
	err := sc.Scan(&run.ID, &run.TemplateName, &run.TemplateVersion, &run.Source,
		&params, &status, &run.StartedAt, &completedAt, &errMsg)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if err := json.Unmarshal([]byte(params), &run.Parameters); err != nil {
		return nil, fmt.Errorf("invalid parameters for run %s: %w", run.ID, err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return &run, nil
}

// RecordOperationRun stores the outcome of one step.
func (s *SQLiteStore) RecordOperationRun(ctx context.Context, opRun *OperationRun) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if opRun.ID == "" {
		opRun.ID = generateID()
	}

	var errValue sql.NullString
	if opRun.Error != "" {
		errValue = sql.NullString{String: opRun.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operation_runs (id, run_id, position, name, summary, status, row_count, duration_ms, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		opRun.ID, opRun.RunID, opRun.Position, opRun.Name, opRun.Summary, opRun.Status,
		opRun.Rows, opRun.Duration.Milliseconds(), errValue, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record operation run: %w", err)
	}
	return nil
}

// GetOperationRuns returns the steps of a run in pipeline order.
func (s *SQLiteStore) GetOperationRuns(ctx context.Context, runID string) ([]*OperationRun, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, position, name, summary, status, row_count, duration_ms, error
		 FROM operation_runs WHERE run_id = ? ORDER BY position, recorded_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*OperationRun
	for rows.Next() {
		var (
			r          OperationRun
			durationMS int64
			errMsg     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Position, &r.Name, &r.Summary, &r.Status,
			&r.Rows, &durationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan operation run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Error = errMsg.String
		out = append(out, &r)
	}
	return out, rows.Err()
}
