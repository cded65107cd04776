package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Page size limits for List.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Repository persists dispatch executions.
type Repository interface {
	Create(ctx context.Context, exec *Execution) error
	Get(ctx context.Context, id string) (*Execution, error)
	List(ctx context.Context, limit int) ([]Execution, error)
}

// SQLiteRepository stores executions in the dispatches table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an execution. A missing ID or StartedAt is filled in.
func (r *SQLiteRepository) Create(ctx context.Context, exec *Execution) error {
	if exec.ID == "" {
		exec.ID = GenerateID()
	}
	if exec.StartedAt.IsZero() {
		exec.StartedAt = time.Now().UTC()
	}
	if exec.FinishedAt.IsZero() {
		exec.FinishedAt = exec.StartedAt
	}
	results := exec.Results
	if results == nil {
		results = []EndpointResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshalling dispatch results: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO dispatches (id, address, source, status, results, error, started_at, finished_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.Address, exec.Source, string(exec.Status), string(resultsJSON),
		nullableString(exec.Error),
		exec.StartedAt.UTC().Format(timeLayout),
		exec.FinishedAt.UTC().Format(timeLayout),
		exec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting dispatch: %w", err)
	}
	return nil
}

// Get returns the execution with the given id, or ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Execution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, address, source, status, results, error, started_at, finished_at, duration_ms
		 FROM dispatches WHERE id = ?`, id)
	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// List returns the most recent executions first. limit is clamped to
// [1, 500]; zero or negative means 50.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Execution, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, address, source, status, results, error, started_at, finished_at, duration_ms
		 FROM dispatches ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying dispatches: %w", err)
	}
	defer rows.Close()

	execs := []Execution{}
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatches: %w", err)
	}
	return execs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(s scanner) (*Execution, error) {
	var (
		exec                Execution
		status, resultsJSON string
		errText             sql.NullString
		started, finished   string
	)
	err := s.Scan(&exec.ID, &exec.Address, &exec.Source, &status, &resultsJSON,
		&errText, &started, &finished, &exec.DurationMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning dispatch: %w", err)
	}

	exec.Status = Status(status)
	exec.Error = errText.String
	if err := json.Unmarshal([]byte(resultsJSON), &exec.Results); err != nil {
		return nil, fmt.Errorf("decoding dispatch results: %w", err)
	}
	if exec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if exec.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("parsing finished_at: %w", err)
	}
	return &exec, nil
}

// nullableString maps "" to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
