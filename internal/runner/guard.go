package runner

import (
	"errors"
	"sync"
)

// ErrBusy is returned when a run is rejected because a conflicting run
// is already in flight. The caller is not enqueued; it should retry on
// its next schedule.
var ErrBusy = errors.New("a sync run is already in progress")

// guard hands out at most one run slot per job name. In exclusive mode
// it hands out at most one slot across all jobs, because every job
// scrapes the same municipal website.
type guard struct {
	mu        sync.Mutex
	exclusive bool
	running   map[string]bool
}

func newGuard(exclusive bool) *guard {
	return &guard{
		exclusive: exclusive,
		running:   make(map[string]bool),
	}
}

// acquire reserves a slot for the named job. The returned release
// function must be called exactly once, and is safe to call from a
// deferred recover path.
func (g *guard) acquire(name string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.exclusive && len(g.running) > 0 {
		return nil, ErrBusy
	}
	if g.running[name] {
		return nil, ErrBusy
	}
	g.running[name] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, name)
			g.mu.Unlock()
		})
	}
	return release, nil
}

func (g *guard) isRunning(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[name]
}

func (g *guard) runningJobs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.running))
	for name := range g.running {
		names = append(names, name)
	}
	return names
}
