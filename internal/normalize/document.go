package normalize

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"obecsync/internal/record"
)

// Only these document types are accepted from the site.
var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
}

// Document normalizes document listing rows ("name", "href", "size",
// "mime") into DocumentFile records for one portal folder.
type Document struct {
	Folder      string
	BaseURL     string
	SizeLimitKB int
}

func (d Document) Normalize(raw record.Raw) (record.Record, error) {
	name := strings.TrimSpace(raw["name"])
	// Listings append the size in parentheses after the name.
	if i := strings.Index(name, "("); i > 0 {
		name = strings.TrimSpace(name[:i])
	}
	if name == "" {
		return record.Record{}, fmt.Errorf("document in %s: missing name", d.Folder)
	}

	link := absoluteLink(d.BaseURL, raw["href"])
	if link == "" {
		return record.Record{}, fmt.Errorf("document %q: empty link", name)
	}
	ext := strings.ToLower(path.Ext(link))
	fallbackMime, ok := allowedExtensions[ext]
	if !ok {
		return record.Record{}, fmt.Errorf("document %q: extension %q not allowed", name, ext)
	}

	size, err := strconv.ParseInt(strings.TrimSpace(raw["size"]), 10, 64)
	if err != nil || size < 0 {
		return record.Record{}, fmt.Errorf("document %q: invalid size %q", name, raw["size"])
	}
	if d.SizeLimitKB > 0 && size > int64(d.SizeLimitKB)*1024 {
		return record.Record{}, fmt.Errorf("document %q: %d bytes exceeds the %d KB limit", name, size, d.SizeLimitKB)
	}

	mime := strings.TrimSpace(raw["mime"])
	if i := strings.Index(mime, ";"); i > 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = fallbackMime
	}

	doc := record.DocumentFile{
		Folder:    d.Folder,
		Name:      name,
		URL:       link,
		FileType:  strings.TrimPrefix(ext, "."),
		MimeType:  mime,
		SizeBytes: size,
	}
	return doc.Canonical(), nil
}

// FolderNormalizer validates folder rows ("name").
type FolderNormalizer struct{}

func (FolderNormalizer) Normalize(raw record.Raw) (record.Record, error) {
	name := strings.TrimSpace(raw["name"])
	if name == "" {
		return record.Record{}, fmt.Errorf("folder: missing name")
	}
	return record.Folder{Name: name}.Canonical(), nil
}
