// Package runner owns job execution: it holds the registry of sync
// jobs, rejects concurrent runs, applies the per-run timeout, and hands
// finished results to the reporter and post-run hooks.
package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"obecsync/internal/engine"
	"obecsync/internal/logging"
	"obecsync/internal/record"
)

var log = logging.Component("runner")

// Hook runs after a finished job with its result and canonical source
// snapshot. Hooks must not block for long; they run on the caller's
// goroutine before the result is returned.
type Hook func(ctx context.Context, res engine.Result, snapshot []record.Record)

// Reporter receives every finished result.
type Reporter interface {
	Report(ctx context.Context, res engine.Result)
}

// Options configure a Runner.
type Options struct {
	// Timeout bounds each run; zero means no limit.
	Timeout time.Duration
	// Exclusive rejects any run while another job is in flight.
	Exclusive bool
	// Engine options are passed through to every run.
	Engine engine.Options
}

// Runner executes registered jobs one at a time per name.
type Runner struct {
	opts     Options
	reporter Reporter
	guard    *guard
	hooks    []Hook

	mu   sync.Mutex
	jobs map[string]engine.Job
	last map[string]engine.Result
}

func New(opts Options, reporter Reporter, hooks ...Hook) *Runner {
	return &Runner{
		opts:     opts,
		reporter: reporter,
		guard:    newGuard(opts.Exclusive),
		hooks:    hooks,
		jobs:     make(map[string]engine.Job),
		last:     make(map[string]engine.Result),
	}
}

// Register adds a job to the registry. Jobs are registered once at
// startup, before any run.
func (r *Runner) Register(job engine.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.Name] = job
}

// Jobs returns the registered job names, sorted.
func (r *Runner) Jobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRunning reports whether the named job is currently in flight.
func (r *Runner) IsRunning(name string) bool {
	return r.guard.isRunning(name)
}

// Running returns the names of jobs currently in flight.
func (r *Runner) Running() []string {
	names := r.guard.runningJobs()
	sort.Strings(names)
	return names
}

// LastResult returns the most recent finished result for the job.
func (r *Runner) LastResult(name string) (engine.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.last[name]
	return res, ok
}

// Run executes the named job. It returns ErrBusy without touching the
// job when a conflicting run is in flight, and an error for unknown job
// names. Any other outcome, including total failure, is expressed in
// the Result.
func (r *Runner) Run(ctx context.Context, name string) (engine.Result, error) {
	r.mu.Lock()
	job, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return engine.Result{}, fmt.Errorf("unknown job %q", name)
	}

	release, err := r.guard.acquire(name)
	if err != nil {
		return engine.Result{}, &engine.Error{Kind: engine.KindLockBusy, ID: name, Err: err}
	}
	defer release()

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	log.Info("run started", "job", name)
	res, snapshot := r.execute(ctx, job)

	r.mu.Lock()
	r.last[name] = res
	r.mu.Unlock()

	if r.reporter != nil {
		r.reporter.Report(context.WithoutCancel(ctx), res)
	}
	for _, hook := range r.hooks {
		hook(context.WithoutCancel(ctx), res, snapshot)
	}
	return res, nil
}

// execute wraps the engine with panic recovery so a bug in one adapter
// cannot take the whole service down or leak the run slot.
func (r *Runner) execute(ctx context.Context, job engine.Job) (res engine.Result, snapshot []record.Record) {
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Error("run panicked", "job", job.Name, "panic", fmt.Sprint(p))
			res = engine.PanicResult(job.Name, started, fmt.Sprint(p))
			snapshot = nil
		}
	}()
	res, snapshot = engine.Run(ctx, job, r.opts.Engine)
	return res, snapshot
}
