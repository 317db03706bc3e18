package app

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"obecsync/internal/config"
	"obecsync/internal/engine"
	"obecsync/internal/mirror"
	"obecsync/internal/normalize"
	"obecsync/internal/record"
	"obecsync/internal/source"
	"obecsync/internal/store"
	"obecsync/internal/store/treestore"
)

// FolderConfig is one document folder to mirror onto the citizen portal.
type FolderConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// LoadFolders reads the folder list from a JSON file of the form
// {"folders": [{"name": ..., "url": ...}]}.
func LoadFolders(path string) ([]FolderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read folders config: %w", err)
	}
	var parsed struct {
		Folders []FolderConfig `json:"folders"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse folders config: %w", err)
	}
	if len(parsed.Folders) == 0 {
		return nil, fmt.Errorf("folders config %s lists no folders", path)
	}
	for _, f := range parsed.Folders {
		if f.Name == "" || f.URL == "" {
			return nil, fmt.Errorf("folders config %s: every folder needs a name and a url", path)
		}
	}
	return parsed.Folders, nil
}

// contactPage binds one municipal API page to the parser that understands
// its layout. Doctors and pharmacies share a page, split by section title.
type contactPage struct {
	category string
	path     string
	parser   source.ParserFunc
}

func contactPages() []contactPage {
	return []contactPage{
		{"general", "/api/kontakt/", source.GeneralContact("Obec Ořechov")},
		{"town-hall", "/api/obecni-urad/", source.ParseStackTable},
		{"schools", "/api/skoly/", source.ParseBlocks},
		{"post-office", "/api/posta/", source.ParseBlocks},
		{"firemen", "/api/hasici/", source.ParseBlocks},
		{"library", "/api/knihovna/", source.ParseBlocks},
		{"doctors", "/api/lekari/", source.ParseSections("Lékárna", false, false)},
		{"pharmacy", "/api/lekari/", source.ParseSections("Lékárna", true, true)},
	}
}

// buildJobs assembles the four sync jobs from their adapters. The mirror
// may be nil when no object store is configured.
func buildJobs(cfg config.Config, db *sql.DB, rdb *redis.Client, m *mirror.Mirror, folders []FolderConfig) []engine.Job {
	base := cfg.SourceBaseURL

	newspaperURL := base + "/orechovsky-zpravodaj/"
	var newspaperSource engine.Source = source.Listing{
		URL:      newspaperURL,
		Contains: "zpravodaj",
		BaseURL:  base,
	}
	if cfg.RenderedFetch {
		newspaperSource = source.Rendered{
			URL:      newspaperURL,
			Contains: "zpravodaj",
			Timeout:  30 * time.Second,
		}
	}
	newspaperJob := engine.Job{
		Name: "newspaper-app",
		Stages: []engine.Stage{{
			Name:       "newspapers",
			Source:     newspaperSource,
			Normalizer: normalize.Newspaper{BaseURL: base},
			Target:     treestore.At(rdb, cfg.RedisPrefix, "newspapers"),
		}},
	}

	contactsAppJob := engine.Job{Name: "contacts-app"}
	contactsPortalJob := engine.Job{Name: "contacts-portal"}
	for _, page := range contactPages() {
		src := source.API{URL: base + page.path, Parser: page.parser}
		norm := normalize.ContactNormalizer{Category: page.category}
		contactsAppJob.Stages = append(contactsAppJob.Stages, engine.Stage{
			Name:       page.category,
			Source:     src,
			Normalizer: norm,
			Target:     treestore.At(rdb, cfg.RedisPrefix, "contacts/"+page.category),
		})
		contactsPortalJob.Stages = append(contactsPortalJob.Stages, engine.Stage{
			Name:       page.category,
			Source:     src,
			Normalizer: norm,
			Target:     store.NewContactTable(db, page.category),
		})
	}

	documentsJob := engine.Job{Name: "documents-portal"}
	folderRows := make([]record.Raw, 0, len(folders))
	for _, f := range folders {
		folderRows = append(folderRows, record.Raw{"name": f.Name})
	}
	documentsJob.Stages = append(documentsJob.Stages, engine.Stage{
		Name:       "folders",
		Source:     source.Static{Rows: folderRows},
		Normalizer: normalize.FolderNormalizer{},
		Target:     store.NewFolderTable(db),
	})
	for _, f := range folders {
		var target engine.Target = store.NewFileTable(db, record.Slug(f.Name))
		if m != nil {
			target = mirror.Target{Inner: target, Mirror: m}
		}
		documentsJob.Stages = append(documentsJob.Stages, engine.Stage{
			Name:   "files/" + record.Slug(f.Name),
			Source: source.Listing{URL: f.URL, Probe: true, BaseURL: base},
			Normalizer: normalize.Document{
				Folder:      f.Name,
				BaseURL:     base,
				SizeLimitKB: cfg.FileSizeLimitKB,
			},
			Target: target,
		})
	}

	return []engine.Job{newspaperJob, contactsAppJob, contactsPortalJob, documentsJob}
}
