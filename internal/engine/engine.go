// Package engine implements the synchronization core: extract source
// records, normalize them, diff against the target store, and apply a
// minimal set of writes that converges the target onto the source.
//
// The engine is written once against small adapter interfaces; the four
// concrete jobs differ only in the adapters they plug in. Re-running a job
// against unchanged source content performs zero writes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"obecsync/internal/logging"
	"obecsync/internal/record"
)

var log = logging.Component("engine")

// Source fetches raw rows from the municipal site or API.
type Source interface {
	Fetch(ctx context.Context) ([]record.Raw, error)
}

// Normalizer converts one raw row into a canonical record, rejecting
// malformed rows individually.
type Normalizer interface {
	Normalize(raw record.Raw) (record.Record, error)
}

// Target is a downstream store keyed by record id. Every mutating call is
// atomic per record; the engine assumes no cross-record transactions.
type Target interface {
	List(ctx context.Context) ([]record.Record, error)
	Create(ctx context.Context, rec record.Record) error
	Update(ctx context.Context, id string, rec record.Record) error
	Delete(ctx context.Context, id string) error
}

// Stage is one source→target reconciliation pass. Most jobs have a single
// stage; the documents job reconciles folders before files so referential
// integrity holds while files are written.
type Stage struct {
	Name       string
	Source     Source
	Normalizer Normalizer
	Target     Target
}

// Job is a named sequence of stages.
type Job struct {
	Name   string
	Stages []Stage
}

// Options tune run-level safety behaviour.
type Options struct {
	// DeleteGuard aborts a run before any write when the plan would
	// delete more than this fraction of a target that holds at least
	// DeleteGuardMin records. A fraction >= 1 disables the guard.
	DeleteGuard    float64
	DeleteGuardMin int
}

// Run executes the job and returns its terminal result together with the
// canonical source snapshot (for post-run hooks such as archival and
// search indexing). A single bad record never aborts the run; run-scoped
// failures (fetch, target list, delete guard, timeout) do.
func Run(ctx context.Context, job Job, opts Options) (Result, []record.Record) {
	res := Result{Job: job.Name, StartedAt: time.Now()}
	var snapshot []record.Record

	for _, stage := range job.Stages {
		recs, pinned := runStage(ctx, stage, opts, &res)
		snapshot = append(snapshot, recs...)
		if pinned != "" {
			res.finish(pinned)
			return res, snapshot
		}
	}

	res.finish("")
	return res, snapshot
}

// runStage reconciles one stage. A non-empty returned status pins the
// whole run's terminal status and stops later stages.
func runStage(ctx context.Context, stage Stage, opts Options, res *Result) ([]record.Record, Status) {
	raws, err := stage.Source.Fetch(ctx)
	if err != nil {
		res.fail("", KindFetch, fmt.Errorf("stage %s: %w", stage.Name, err))
		return nil, StatusFailed
	}

	seen := make(map[string]struct{}, len(raws))
	source := make([]record.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := stage.Normalizer.Normalize(raw)
		if err != nil {
			res.skip("", err.Error())
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			res.skip(rec.ID, "duplicate id")
			continue
		}
		seen[rec.ID] = struct{}{}
		source = append(source, rec)
	}

	target, err := stage.Target.List(ctx)
	if err != nil {
		// Diffing without a baseline risks mass deletion, so a failed
		// List aborts before anything is written.
		res.fail("", KindStoreRead, fmt.Errorf("stage %s: %w", stage.Name, err))
		return source, StatusFailed
	}
	res.TargetSize += len(target)

	plan := Diff(source, target)
	res.Skipped += len(plan.Unchanged)

	log.Debug("diff computed",
		"job", res.Job,
		"stage", stage.Name,
		"source", len(source),
		"target", len(target),
		"create", len(plan.Create),
		"update", len(plan.Update),
		"delete", len(plan.Delete),
		"unchanged", len(plan.Unchanged),
	)

	if tripsDeleteGuard(opts, len(plan.Delete), len(target)) {
		res.fail("", KindDeleteGuard, fmt.Errorf(
			"stage %s: plan deletes %d of %d target records, above the guard fraction %.2f; aborting before any write",
			stage.Name, len(plan.Delete), len(target), opts.DeleteGuard))
		return source, StatusFailed
	}

	// Creates first, then updates, then deletes: additive writes are safe
	// to retry, while deleting before replacements exist risks transient
	// data loss.
	for _, rec := range plan.Create {
		if st := interrupted(ctx, res); st != "" {
			return source, st
		}
		if err := stage.Target.Create(ctx, rec); err != nil {
			res.fail(rec.ID, KindStoreWrite, err)
			continue
		}
		res.Created++
	}
	for _, rec := range plan.Update {
		if st := interrupted(ctx, res); st != "" {
			return source, st
		}
		if err := stage.Target.Update(ctx, rec.ID, rec); err != nil {
			res.fail(rec.ID, KindStoreWrite, err)
			continue
		}
		res.Updated++
	}
	for _, id := range plan.Delete {
		if st := interrupted(ctx, res); st != "" {
			return source, st
		}
		if err := stage.Target.Delete(ctx, id); err != nil {
			res.fail(id, KindStoreWrite, err)
			continue
		}
		res.Deleted++
		res.DeletedIDs = append(res.DeletedIDs, id)
	}

	return source, ""
}

// interrupted checks for cancellation between records; the engine never
// aborts a record mid-apply.
func interrupted(ctx context.Context, res *Result) Status {
	err := ctx.Err()
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		res.fail("", KindTimeout, err)
		return StatusFailed
	}
	res.fail("", KindCancelled, err)
	return StatusCancelled
}

func tripsDeleteGuard(opts Options, deletes, targetSize int) bool {
	if opts.DeleteGuard >= 1 || deletes == 0 {
		return false
	}
	if targetSize < opts.DeleteGuardMin {
		return false
	}
	return float64(deletes) > opts.DeleteGuard*float64(targetSize)
}
