package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/nuka-academy/internal/orchestrator"
	"github.com/nidhogg/nuka-academy/internal/provider"
)

// Run statuses as stored.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is the persisted record of one background orchestration.
type Run struct {
	ID            string                     `json:"id"`
	Message       string                     `json:"message"`
	Context       string                     `json:"context,omitempty"`
	Mode          string                     `json:"mode"`
	Status        string                     `json:"status"`
	Intent        string                     `json:"intent,omitempty"`
	Complexity    string                     `json:"complexity,omitempty"`
	Confidence    float64                    `json:"confidence,omitempty"`
	Agents        []string                   `json:"agents"`
	FinalResponse string                     `json:"final_response,omitempty"`
	Error         string                     `json:"error,omitempty"`
	Results       []orchestrator.AgentResult `json:"results,omitempty"`
	TokensUsed    int                        `json:"tokens_used"`
	DurationMs    int64                      `json:"duration_ms"`
	CreatedAt     time.Time                  `json:"created_at"`
	CompletedAt   *time.Time                 `json:"completed_at,omitempty"`
}

// RunStarted inserts a run in the running state.
func (s *Store) RunStarted(ctx context.Context, id, message, reqContext string, mode provider.Mode) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO runs (id, message, context, mode, status)
		VALUES ($1, $2, $3, $4, $5)`,
		id, message, reqContext, string(mode), RunRunning,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunCompleted stores the outcome of a successful run.
func (s *Store) RunCompleted(ctx context.Context, id string, resp *orchestrator.Response) error {
	analysisJSON, err := json.Marshal(resp.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	resultsJSON, err := json.Marshal(resp.Workflow.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	agents := make([]string, len(resp.Metadata.AgentsUsed))
	for i, a := range resp.Metadata.AgentsUsed {
		agents[i] = string(a)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE runs SET
			status = $2, intent = $3, complexity = $4, confidence = $5,
			agents = $6, final_response = $7, analysis = $8, results = $9,
			tokens_used = $10, duration_ms = $11, completed_at = now()
		WHERE id = $1`,
		id, RunCompleted,
		string(resp.Analysis.Intent), string(resp.Analysis.Complexity), resp.Analysis.Confidence,
		agents, resp.FinalResponse, analysisJSON, resultsJSON,
		resp.Metadata.TokensUsed, resp.Metadata.TotalDurationMs,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete run %s: %w", id, ErrNotFound)
	}
	return nil
}

// RunFailed marks a run as failed. Results completed before the failure
// are kept when the error carries them.
func (s *Store) RunFailed(ctx context.Context, id string, runErr error) error {
	var results []byte
	var stepErr *orchestrator.StepError
	if errors.As(runErr, &stepErr) {
		data, err := json.Marshal(stepErr.Progress.Results)
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		results = data
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE runs SET status = $2, error = $3, results = $4, completed_at = now()
		WHERE id = $1`,
		id, RunFailed, runErr.Error(), results,
	)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fail run %s: %w", id, ErrNotFound)
	}
	return nil
}

const runColumns = `id, message, context, mode, status, intent, complexity, confidence,
	agents, final_response, error, results, tokens_used, duration_ms, created_at, completed_at`

func scanRun(row pgx.Row) (*Run, error) {
	var r Run
	var resultsJSON []byte
	err := row.Scan(&r.ID, &r.Message, &r.Context, &r.Mode, &r.Status, &r.Intent,
		&r.Complexity, &r.Confidence, &r.Agents, &r.FinalResponse, &r.Error,
		&resultsJSON, &r.TokensUsed, &r.DurationMs, &r.CreatedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &r.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	return &r, nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
