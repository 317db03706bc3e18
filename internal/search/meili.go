// Package search pushes synced portal content into Meilisearch so the
// citizen portal can offer full-text search over contacts and documents.
// Indexing is optional and best-effort; it never affects a job's result.
package search

import (
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"obecsync/internal/logging"
	"obecsync/internal/record"
)

var log = logging.Component("search")

const (
	idxContacts  = "portal_contacts"
	idxDocuments = "portal_documents"
)

// Meili wraps the Meilisearch client with index setup and health tracking.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates the client and configures indexes. The instance stays
// usable while Meilisearch is down; a background loop reconfigures the
// indexes when it comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Warn("meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxContacts,
			filterable: []string{"category"},
			searchable: []string{"title", "subtitle", "address", "email"},
		},
		{
			uid:        idxDocuments,
			filterable: []string{"folderId", "fileType"},
			searchable: []string{"name"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Debug("create index (may already exist)", "index", idx.uid, "error", err)
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			log.Warn("update filterable attributes", "index", idx.uid, "error", err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Warn("update searchable attributes", "index", idx.uid, "error", err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexRecords bulk-indexes records into the named index.
func (m *Meili) IndexRecords(index string, recs []record.Record) error {
	if len(recs) == 0 {
		return nil
	}
	docs := make([]map[string]string, 0, len(recs))
	for _, rec := range recs {
		doc := make(map[string]string, len(rec.Fields)+1)
		for k, v := range rec.Fields {
			doc[k] = v
		}
		doc["id"] = documentID(rec.ID)
		docs = append(docs, doc)
	}
	_, err := m.client.Index(index).AddDocuments(docs, nil)
	return err
}

// RemoveIDs drops records from the named index.
func (m *Meili) RemoveIDs(index string, ids []string) error {
	for _, id := range ids {
		if _, err := m.client.Index(index).DeleteDocument(documentID(id), nil); err != nil {
			return err
		}
	}
	return nil
}

// documentID folds a record id into Meilisearch's allowed id alphabet.
func documentID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
