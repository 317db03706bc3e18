// Package app wires the sync jobs together and exposes them over HTTP
// for the scheduler.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"obecsync/internal/archive"
	"obecsync/internal/config"
	"obecsync/internal/engine"
	"obecsync/internal/logging"
	"obecsync/internal/mirror"
	"obecsync/internal/record"
	"obecsync/internal/report"
	"obecsync/internal/runner"
	"obecsync/internal/search"
	"obecsync/internal/store"
)

var log = logging.Component("app")

type Service struct {
	cfg    config.Config
	db     *sql.DB
	redis  *redis.Client
	runner *runner.Runner
	runLog *store.RunLog
}

// New assembles the service. searchSvc, archiveSvc and m may be nil when
// the corresponding integration is not configured.
func New(cfg config.Config, db *sql.DB, rdb *redis.Client, m *mirror.Mirror, searchSvc *search.Service, archiveSvc *archive.Service, folders []FolderConfig) *Service {
	runLog := store.NewRunLog(db)
	reporter := report.New(runLog, cfg.DeleteGuard/2)

	hooks := []runner.Hook{
		func(ctx context.Context, res engine.Result, snapshot []record.Record) {
			searchSvc.UpdateFromRun(res.Job, snapshot, res.DeletedIDs)
		},
	}
	if archiveSvc != nil {
		hooks = append(hooks, func(ctx context.Context, res engine.Result, snapshot []record.Record) {
			if res.Status == engine.StatusSuccess {
				if err := archiveSvc.Snapshot(res.Job, snapshot); err != nil {
					log.Warn("archive snapshot", "job", res.Job, "error", err)
				}
			}
		})
	}

	r := runner.New(runner.Options{
		Timeout:   cfg.JobTimeout,
		Exclusive: cfg.ExclusiveJobs,
		Engine: engine.Options{
			DeleteGuard:    cfg.DeleteGuard,
			DeleteGuardMin: cfg.DeleteGuardMin,
		},
	}, reporter, hooks...)

	for _, job := range buildJobs(cfg, db, rdb, m, folders) {
		r.Register(job)
	}

	return &Service{
		cfg:    cfg,
		db:     db,
		redis:  rdb,
		runner: r,
		runLog: runLog,
	}
}

// Runner exposes the job runner for the one-shot CLI mode.
func (s *Service) Runner() *runner.Runner {
	return s.runner
}

// RunJob starts the named job, rejecting it when a conflicting run is
// in flight.
func (s *Service) RunJob(ctx context.Context, name string) (engine.Result, error) {
	return s.runner.Run(ctx, name)
}

// JobStatus describes one registered job for the API.
type JobStatus struct {
	Name    string         `json:"name"`
	Running bool           `json:"running"`
	Last    *engine.Result `json:"last,omitempty"`
}

func (s *Service) Jobs() []JobStatus {
	names := s.runner.Jobs()
	statuses := make([]JobStatus, 0, len(names))
	for _, name := range names {
		statuses = append(statuses, s.jobStatus(name))
	}
	return statuses
}

func (s *Service) Job(name string) (JobStatus, error) {
	for _, known := range s.runner.Jobs() {
		if known == name {
			return s.jobStatus(name), nil
		}
	}
	return JobStatus{}, domainError(http.StatusNotFound, "JOB_NOT_FOUND", fmt.Sprintf("unknown job %q", name), nil)
}

func (s *Service) jobStatus(name string) JobStatus {
	status := JobStatus{Name: name, Running: s.runner.IsRunning(name)}
	if last, ok := s.runner.LastResult(name); ok {
		status.Last = &last
	}
	return status
}

// History returns recent persisted runs for a job.
func (s *Service) History(ctx context.Context, name string, limit int) ([]store.RunSummary, error) {
	if _, err := s.Job(name); err != nil {
		return nil, err
	}
	return s.runLog.RecentRuns(ctx, name, limit)
}

// SchedulerToken is the shared secret the scheduler presents on run
// requests.
func (s *Service) SchedulerToken() string {
	return s.cfg.SchedulerToken
}

// Ping verifies connectivity to both target stores.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
