package search

import (
	"obecsync/internal/record"
)

// Indexer is the slice of the Meili client the service needs.
type Indexer interface {
	IndexRecords(index string, recs []record.Record) error
	RemoveIDs(index string, ids []string) error
	Healthy() bool
}

// Service routes job snapshots to their portal index. A nil Service is
// valid and does nothing, for deployments without Meilisearch.
type Service struct {
	indexer Indexer
}

func NewService(indexer Indexer) *Service {
	return &Service{indexer: indexer}
}

// indexFor maps a sync job to its search index. Jobs without an index
// are not searchable and return "".
func indexFor(job string) string {
	switch job {
	case "contacts-portal":
		return idxContacts
	case "documents-portal":
		return idxDocuments
	default:
		return ""
	}
}

// UpdateFromRun reindexes a job's canonical snapshot and removes records
// the run deleted. Errors are logged, not returned; search lags behind
// the store until the next run rather than failing the job.
func (s *Service) UpdateFromRun(job string, snapshot []record.Record, deletedIDs []string) {
	if s == nil || s.indexer == nil {
		return
	}
	index := indexFor(job)
	if index == "" {
		return
	}
	if !s.indexer.Healthy() {
		log.Debug("skipping index update, meilisearch unhealthy", "job", job)
		return
	}
	if err := s.indexer.IndexRecords(index, snapshot); err != nil {
		log.Warn("index snapshot", "job", job, "index", index, "error", err)
		return
	}
	if len(deletedIDs) > 0 {
		if err := s.indexer.RemoveIDs(index, deletedIDs); err != nil {
			log.Warn("remove deleted records", "job", job, "index", index, "error", err)
		}
	}
}
