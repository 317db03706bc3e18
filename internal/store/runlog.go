package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"obecsync/internal/engine"
)

// RunLog persists terminal job results so the dashboard can show history
// across restarts.
type RunLog struct {
	db *sql.DB
}

func NewRunLog(db *sql.DB) *RunLog {
	return &RunLog{db: db}
}

func (l *RunLog) InsertRun(ctx context.Context, res engine.Result) error {
	failures, err := json.Marshal(res.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO job_runs (job, status, created, updated, deleted, skipped, failed, failures, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, res.Job, string(res.Status), res.Created, res.Updated, res.Deleted,
		res.Skipped, res.Failed, failures, res.StartedAt, res.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}
	return nil
}

// RunSummary is one persisted run, newest first from RecentRuns.
type RunSummary struct {
	Job        string    `json:"job"`
	Status     string    `json:"status"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Deleted    int       `json:"deleted"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

func (l *RunLog) RecentRuns(ctx context.Context, job string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT job, status, created, updated, deleted, skipped, failed, started_at, finished_at
		FROM job_runs
		WHERE job = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, job, limit)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.Job, &r.Status, &r.Created, &r.Updated, &r.Deleted, &r.Skipped, &r.Failed, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job runs: %w", err)
	}
	return runs, nil
}
