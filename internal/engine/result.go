package engine

import "time"

// Status is the terminal outcome of a job run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial_failure"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
)

// Failure records one failed apply call.
type Failure struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Skip records one source row that was dropped before diffing.
type Skip struct {
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Result is the terminal value of one job run. It is mutated by the engine
// while the run is in flight and never afterwards.
type Result struct {
	Job    string `json:"job"`
	Status Status `json:"status"`

	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	Failures []Failure `json:"failures,omitempty"`
	Skips    []Skip    `json:"skips,omitempty"`

	// DeletedIDs lets post-run hooks (search index) drop removed entries.
	DeletedIDs []string `json:"-"`

	// TargetSize is the size of the target snapshot before applying,
	// summed over stages. The reporter uses it to surface the magnitude
	// of deletions.
	TargetSize int `json:"targetSize"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

func (r *Result) fail(id string, kind Kind, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{ID: id, Kind: kind, Message: err.Error()})
}

func (r *Result) skip(id, reason string) {
	r.Skipped++
	r.Skips = append(r.Skips, Skip{ID: id, Reason: reason})
}

// finish stamps the end time and derives the terminal status from the
// counts, unless a run-scoped failure already pinned it.
func (r *Result) finish(pinned Status) {
	r.FinishedAt = time.Now()
	if pinned != "" {
		r.Status = pinned
		return
	}
	attempted := r.Created + r.Updated + r.Deleted + r.Failed
	switch {
	case r.Failed == 0:
		r.Status = StatusSuccess
	case r.Failed < attempted:
		r.Status = StatusPartialFailure
	default:
		r.Status = StatusFailed
	}
}

// PanicResult is the terminal result recorded when a run panics before
// producing one.
func PanicResult(job string, started time.Time, message string) Result {
	return Result{
		Job:        job,
		Status:     StatusFailed,
		Failed:     1,
		Failures:   []Failure{{Kind: KindInternal, Message: "panic: " + message}},
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
}

// Duration is the wall-clock length of the run.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
