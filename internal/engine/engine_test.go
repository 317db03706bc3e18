package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"obecsync/internal/record"
)

type fakeSource struct {
	rows []record.Raw
	err  error
}

func (f fakeSource) Fetch(ctx context.Context) ([]record.Raw, error) {
	return f.rows, f.err
}

// identityNormalizer turns {"id": x, "v": y} rows into records keyed by x.
type identityNormalizer struct{}

func (identityNormalizer) Normalize(raw record.Raw) (record.Record, error) {
	if raw["id"] == "" {
		return record.Record{}, errors.New("missing id")
	}
	return record.NewRecord(raw["id"], map[string]string{"v": raw["v"]}), nil
}

type fakeTarget struct {
	mu   sync.Mutex
	recs map[string]record.Record
	ops  []string

	listFn   func(ctx context.Context) ([]record.Record, error)
	createFn func(ctx context.Context, rec record.Record) error
	updateFn func(ctx context.Context, id string, rec record.Record) error
	deleteFn func(ctx context.Context, id string) error
}

func newFakeTarget(recs ...record.Record) *fakeTarget {
	t := &fakeTarget{recs: make(map[string]record.Record)}
	for _, r := range recs {
		t.recs[r.ID] = r
	}
	return t
}

func (f *fakeTarget) List(ctx context.Context) ([]record.Record, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]record.Record, 0, len(f.recs))
	for _, r := range f.recs {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeTarget) Create(ctx context.Context, rec record.Record) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, rec); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[rec.ID] = rec
	f.ops = append(f.ops, "create:"+rec.ID)
	return nil
}

func (f *fakeTarget) Update(ctx context.Context, id string, rec record.Record) error {
	if f.updateFn != nil {
		if err := f.updateFn(ctx, id, rec); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[id] = rec
	f.ops = append(f.ops, "update:"+id)
	return nil
}

func (f *fakeTarget) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		if err := f.deleteFn(ctx, id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recs, id)
	f.ops = append(f.ops, "delete:"+id)
	return nil
}

func row(id, v string) record.Raw {
	return record.Raw{"id": id, "v": v}
}

func canonical(id, v string) record.Record {
	return record.NewRecord(id, map[string]string{"v": v})
}

func singleStageJob(src Source, target Target) Job {
	return Job{
		Name: "test-job",
		Stages: []Stage{{
			Name:       "main",
			Source:     src,
			Normalizer: identityNormalizer{},
			Target:     target,
		}},
	}
}

func TestRunConvergesTarget(t *testing.T) {
	target := newFakeTarget(canonical("2", "two"), canonical("3", "old"), canonical("4", "four"))
	src := fakeSource{rows: []record.Raw{row("1", "one"), row("2", "two"), row("3", "new")}}

	res, _ := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 1})

	if res.Status != StatusSuccess {
		t.Fatalf("status = %s, want success: %+v", res.Status, res.Failures)
	}
	if res.Created != 1 || res.Updated != 1 || res.Deleted != 1 || res.Skipped != 1 || res.Failed != 0 {
		t.Errorf("counts = created %d updated %d deleted %d skipped %d failed %d",
			res.Created, res.Updated, res.Deleted, res.Skipped, res.Failed)
	}
	if _, ok := target.recs["4"]; ok {
		t.Error("record 4 should have been deleted")
	}
	if target.recs["3"].Field("v") != "new" {
		t.Errorf("record 3 not updated: %v", target.recs["3"])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	target := newFakeTarget()
	src := fakeSource{rows: []record.Raw{row("1", "one"), row("2", "two")}}
	job := singleStageJob(src, target)

	first, _ := Run(context.Background(), job, Options{DeleteGuard: 1})
	if first.Created != 2 {
		t.Fatalf("first run created %d, want 2", first.Created)
	}

	second, _ := Run(context.Background(), job, Options{DeleteGuard: 1})
	if second.Status != StatusSuccess {
		t.Fatalf("second run status = %s", second.Status)
	}
	if second.Created != 0 || second.Updated != 0 || second.Deleted != 0 {
		t.Errorf("second run performed writes: %+v", second)
	}
	if second.Skipped != 2 {
		t.Errorf("second run skipped %d, want 2", second.Skipped)
	}
}

func TestRunCreatesBeforeDeletes(t *testing.T) {
	target := newFakeTarget(canonical("old", "x"))
	src := fakeSource{rows: []record.Raw{row("new", "y")}}

	res, _ := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 1})
	if res.Status != StatusSuccess {
		t.Fatalf("status = %s", res.Status)
	}
	if len(target.ops) != 2 || target.ops[0] != "create:new" || target.ops[1] != "delete:old" {
		t.Errorf("ops = %v, want create before delete", target.ops)
	}
}

func TestRunIsolatesRecordFailures(t *testing.T) {
	target := newFakeTarget()
	target.createFn = func(ctx context.Context, rec record.Record) error {
		if rec.ID == "2" {
			return errors.New("write refused")
		}
		return nil
	}
	src := fakeSource{rows: []record.Raw{row("1", "a"), row("2", "b"), row("3", "c")}}

	res, _ := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 1})

	if res.Status != StatusPartialFailure {
		t.Fatalf("status = %s, want partial_failure", res.Status)
	}
	if res.Created != 2 || res.Failed != 1 {
		t.Errorf("created %d failed %d, want 2 and 1", res.Created, res.Failed)
	}
	if len(res.Failures) != 1 || res.Failures[0].ID != "2" || res.Failures[0].Kind != KindStoreWrite {
		t.Errorf("failures = %+v", res.Failures)
	}
	if _, ok := target.recs["3"]; !ok {
		t.Error("record after the failing one was not applied")
	}
}

func TestRunAllWritesFailing(t *testing.T) {
	target := newFakeTarget()
	target.createFn = func(ctx context.Context, rec record.Record) error {
		return errors.New("down")
	}
	src := fakeSource{rows: []record.Raw{row("1", "a"), row("2", "b")}}

	res, _ := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 1})
	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
}

func TestRunFetchFailureAbortsBeforeWrites(t *testing.T) {
	target := newFakeTarget(canonical("1", "keep"))
	src := fakeSource{err: errors.New("site unreachable")}

	res, _ := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 1})

	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if len(res.Failures) != 1 || res.Failures[0].Kind != KindFetch {
		t.Errorf("failures = %+v, want one fetch failure", res.Failures)
	}
	if len(target.ops) != 0 {
		t.Errorf("target was written to: %v", target.ops)
	}
	if _, ok := target.recs["1"]; !ok {
		t.Error("stale data should remain untouched on fetch failure")
	}
}

func TestRunListFailureAborts(t *testing.T) {
	target := newFakeTarget()
	target.listFn = func(ctx context.Context) ([]record.Record, error) {
		return nil, errors.New("store down")
	}
	src := fakeSource{rows: []record.Raw{row("1", "a")}}

	res, _ := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 1})
	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if len(res.Failures) != 1 || res.Failures[0].Kind != KindStoreRead {
		t.Errorf("failures = %+v", res.Failures)
	}
	if len(target.ops) != 0 {
		t.Errorf("target was written to: %v", target.ops)
	}
}

func TestRunSkipsMalformedAndDuplicateRows(t *testing.T) {
	target := newFakeTarget()
	src := fakeSource{rows: []record.Raw{
		row("1", "a"),
		{"v": "no id"},
		row("1", "duplicate"),
	}}

	res, _ := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 1})

	if res.Status != StatusSuccess {
		t.Fatalf("status = %s: %+v", res.Status, res.Failures)
	}
	if res.Created != 1 {
		t.Errorf("created %d, want 1", res.Created)
	}
	if res.Skipped != 2 {
		t.Errorf("skipped %d, want 2 (malformed + duplicate)", res.Skipped)
	}
	if target.recs["1"].Field("v") != "a" {
		t.Errorf("first occurrence should win, got %v", target.recs["1"])
	}
}

func TestRunDeleteGuardAbortsMassDeletion(t *testing.T) {
	recs := make([]record.Record, 0, 20)
	for i := 0; i < 20; i++ {
		recs = append(recs, canonical(fmt.Sprintf("r%02d", i), "v"))
	}
	target := newFakeTarget(recs...)
	src := fakeSource{rows: []record.Raw{row("r00", "v")}}

	res, _ := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 0.5, DeleteGuardMin: 10})

	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if len(res.Failures) != 1 || res.Failures[0].Kind != KindDeleteGuard {
		t.Errorf("failures = %+v", res.Failures)
	}
	if len(target.ops) != 0 {
		t.Errorf("guard tripped but target was written to: %v", target.ops)
	}
}

func TestRunDeleteGuardIgnoresSmallTargets(t *testing.T) {
	target := newFakeTarget(canonical("1", "a"), canonical("2", "b"))
	src := fakeSource{rows: []record.Raw{}}

	res, _ := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 0.5, DeleteGuardMin: 10})
	if res.Status != StatusSuccess {
		t.Fatalf("status = %s: %+v", res.Status, res.Failures)
	}
	if res.Deleted != 2 {
		t.Errorf("deleted %d, want 2", res.Deleted)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	target := newFakeTarget()
	target.createFn = func(context.Context, record.Record) error {
		cancel() // cancel mid-run; the next record must not be applied
		return nil
	}
	src := fakeSource{rows: []record.Raw{row("1", "a"), row("2", "b"), row("3", "c")}}

	res, _ := Run(ctx, singleStageJob(src, target), Options{DeleteGuard: 1})

	if res.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", res.Status)
	}
	if res.Created != 1 {
		t.Errorf("created %d, want 1 (first record applied, rest abandoned)", res.Created)
	}
}

func TestRunTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	target := newFakeTarget()
	target.createFn = func(context.Context, record.Record) error {
		time.Sleep(30 * time.Millisecond)
		return nil
	}
	src := fakeSource{rows: []record.Raw{row("1", "a"), row("2", "b")}}

	res, _ := Run(ctx, singleStageJob(src, target), Options{DeleteGuard: 1})

	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	found := false
	for _, f := range res.Failures {
		if f.Kind == KindTimeout {
			found = true
		}
	}
	if !found {
		t.Errorf("no timeout failure recorded: %+v", res.Failures)
	}
}

func TestRunReturnsSnapshot(t *testing.T) {
	target := newFakeTarget()
	src := fakeSource{rows: []record.Raw{row("b", "2"), row("a", "1")}}

	_, snapshot := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 1})
	if len(snapshot) != 2 {
		t.Fatalf("snapshot has %d records, want 2", len(snapshot))
	}
}

func TestRunMultiStageStopsOnRunFailure(t *testing.T) {
	okTarget := newFakeTarget()
	brokenSrc := fakeSource{err: errors.New("unreachable")}
	untouched := newFakeTarget()

	job := Job{
		Name: "multi",
		Stages: []Stage{
			{Name: "first", Source: brokenSrc, Normalizer: identityNormalizer{}, Target: okTarget},
			{Name: "second", Source: fakeSource{rows: []record.Raw{row("1", "a")}}, Normalizer: identityNormalizer{}, Target: untouched},
		},
	}

	res, _ := Run(context.Background(), job, Options{DeleteGuard: 1})
	if res.Status != StatusFailed {
		t.Fatalf("status = %s", res.Status)
	}
	if len(untouched.ops) != 0 {
		t.Errorf("second stage ran after the first failed: %v", untouched.ops)
	}
}

func TestRunRecordsDeletedIDs(t *testing.T) {
	target := newFakeTarget(canonical("gone", "x"), canonical("kept", "y"))
	src := fakeSource{rows: []record.Raw{row("kept", "y")}}

	res, _ := Run(context.Background(), singleStageJob(src, target), Options{DeleteGuard: 1})
	if len(res.DeletedIDs) != 1 || res.DeletedIDs[0] != "gone" {
		t.Errorf("DeletedIDs = %v, want [gone]", res.DeletedIDs)
	}
}
