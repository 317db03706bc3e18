// Package archive keeps a git-versioned history of each job's canonical
// record set. Every run that changed anything commits a JSON snapshot,
// which gives the operators a browsable diff trail of what the village
// website published over time.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"obecsync/internal/record"
)

type snapshotEntry struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Service writes snapshots into a single repository under baseDir, one
// JSON file per job. A nil Service is valid and does nothing.
type Service struct {
	baseDir string
	mu      sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{baseDir: baseDir}
}

// Snapshot serializes recs to <job>.json and commits when the worktree
// changed. Unchanged runs produce no commit.
func (s *Service) Snapshot(job string, recs []record.Record) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.openOrInit()
	if err != nil {
		return err
	}

	entries := make([]snapshotEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, snapshotEntry{ID: rec.ID, Fields: rec.Fields})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	filename := job + ".json"
	if err := os.WriteFile(filepath.Join(s.baseDir, filename), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if _, err := worktree.Add(filename); err != nil {
		return fmt.Errorf("git add snapshot: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("read worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	message := fmt.Sprintf("Sync %s: %d records", job, len(entries))
	if _, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "obecsync",
			Email: "sync@localhost",
			When:  time.Now(),
		},
	}); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (s *Service) openOrInit() (*git.Repository, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	repo, err := git.PlainOpen(s.baseDir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open archive repo: %w", err)
	}
	repo, err = git.PlainInit(s.baseDir, false)
	if err != nil {
		return nil, fmt.Errorf("init archive repo: %w", err)
	}
	return repo, nil
}
