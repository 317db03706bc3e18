// Package report turns run results into operator-facing output: a
// structured log line, a human summary, and a persisted run-log row.
package report

import (
	"context"
	"fmt"
	"time"

	"obecsync/internal/engine"
	"obecsync/internal/logging"
)

var log = logging.Component("report")

// RunLog persists finished runs. Satisfied by store.RunLog.
type RunLog interface {
	InsertRun(ctx context.Context, res engine.Result) error
}

// Reporter publishes run results. runLog may be nil when no database is
// configured (one-shot CLI mode against redis only).
type Reporter struct {
	runLog RunLog

	// deleteWarn is the deleted/target fraction above which a run gets a
	// warning even though it stayed under the abort guard.
	deleteWarn float64
}

func New(runLog RunLog, deleteWarn float64) *Reporter {
	return &Reporter{runLog: runLog, deleteWarn: deleteWarn}
}

// Report logs the result and records it in the run log.
func (r *Reporter) Report(ctx context.Context, res engine.Result) {
	attrs := []any{
		"job", res.Job,
		"status", string(res.Status),
		"created", res.Created,
		"updated", res.Updated,
		"deleted", res.Deleted,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration", res.Duration().Round(time.Millisecond).String(),
	}
	switch res.Status {
	case engine.StatusSuccess:
		log.Info("run finished", attrs...)
	default:
		log.Warn("run finished", attrs...)
	}

	for _, f := range res.Failures {
		log.Warn("record failed", "job", res.Job, "id", f.ID, "kind", string(f.Kind), "message", f.Message)
	}

	if res.TargetSize > 0 && r.deleteWarn > 0 {
		fraction := float64(res.Deleted) / float64(res.TargetSize)
		if fraction > r.deleteWarn {
			log.Warn("run deleted a large share of the target",
				"job", res.Job, "deleted", res.Deleted, "targetSize", res.TargetSize)
		}
	}

	if r.runLog != nil {
		if err := r.runLog.InsertRun(ctx, res); err != nil {
			log.Error("persist run log", "job", res.Job, "error", err)
		}
	}
}

// Summary renders a one-line human description of the run, used by the
// one-shot CLI mode.
func Summary(res engine.Result) string {
	return fmt.Sprintf("%s: %s (created %d, updated %d, deleted %d, skipped %d, failed %d) in %s",
		res.Job, res.Status, res.Created, res.Updated, res.Deleted, res.Skipped, res.Failed,
		res.Duration().Round(time.Millisecond))
}
