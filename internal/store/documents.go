package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"obecsync/internal/record"
)

// FolderTable syncs the portal's document folders. Deleting a folder
// cascades to its files via the schema's foreign key, repeating what the
// original per-folder scripts guaranteed manually.
type FolderTable struct {
	db *sql.DB
}

func NewFolderTable(db *sql.DB) *FolderTable {
	return &FolderTable{db: db}
}

func (t *FolderTable) List(ctx context.Context) ([]record.Record, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT id, name, content_hash FROM folders`)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var recs []record.Record
	for rows.Next() {
		var id, name, hash string
		if err := rows.Scan(&id, &name, &hash); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		recs = append(recs, record.Record{ID: id, Hash: hash, Fields: map[string]string{"name": name}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return recs, nil
}

func (t *FolderTable) Create(ctx context.Context, rec record.Record) error {
	return t.upsert(ctx, rec)
}

func (t *FolderTable) Update(ctx context.Context, id string, rec record.Record) error {
	return t.upsert(ctx, rec)
}

func (t *FolderTable) upsert(ctx context.Context, rec record.Record) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO folders (id, name, content_hash, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			content_hash = EXCLUDED.content_hash,
			updated_at = NOW()
	`, rec.ID, rec.Field("name"), rec.Hash)
	if err != nil {
		return fmt.Errorf("upsert folder %s: %w", rec.ID, err)
	}
	return nil
}

func (t *FolderTable) Delete(ctx context.Context, id string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete folder %s: %w", id, err)
	}
	return nil
}

// FileTable syncs document metadata for one folder. Scoping List to the
// folder keeps each folder's diff from scheduling deletes in another.
// Rows the operators upload by hand (from_website = false) are invisible
// to List and immune to Delete, so the engine can never schedule them
// for removal.
type FileTable struct {
	db       *sql.DB
	folderID string
}

func NewFileTable(db *sql.DB, folderID string) *FileTable {
	return &FileTable{db: db, folderID: folderID}
}

func (t *FileTable) List(ctx context.Context) ([]record.Record, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, folder_id, name, url, file_type, mime_type, size_bytes, content_hash
		FROM files
		WHERE from_website AND folder_id = $1
	`, t.folderID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var recs []record.Record
	for rows.Next() {
		var id, folderID, name, url, fileType, mimeType, hash string
		var size int64
		if err := rows.Scan(&id, &folderID, &name, &url, &fileType, &mimeType, &size, &hash); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		recs = append(recs, record.Record{ID: id, Hash: hash, Fields: map[string]string{
			"folder_id":  folderID,
			"name":       name,
			"url":        url,
			"file_type":  fileType,
			"mime_type":  mimeType,
			"size_bytes": strconv.FormatInt(size, 10),
		}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return recs, nil
}

func (t *FileTable) Create(ctx context.Context, rec record.Record) error {
	return t.upsert(ctx, rec)
}

func (t *FileTable) Update(ctx context.Context, id string, rec record.Record) error {
	return t.upsert(ctx, rec)
}

func (t *FileTable) upsert(ctx context.Context, rec record.Record) error {
	size, err := strconv.ParseInt(rec.Field("size_bytes"), 10, 64)
	if err != nil {
		return fmt.Errorf("file %s: bad size %q", rec.ID, rec.Field("size_bytes"))
	}
	_, err = t.db.ExecContext(ctx, `
		INSERT INTO files (id, folder_id, name, url, file_type, mime_type, size_bytes, from_website, content_hash, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			folder_id = EXCLUDED.folder_id,
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			file_type = EXCLUDED.file_type,
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes,
			from_website = TRUE,
			content_hash = EXCLUDED.content_hash,
			updated_at = NOW()
	`, rec.ID, rec.Field("folder_id"), rec.Field("name"), rec.Field("url"),
		rec.Field("file_type"), rec.Field("mime_type"), size, rec.Hash)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", rec.ID, err)
	}
	return nil
}

func (t *FileTable) Delete(ctx context.Context, id string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1 AND from_website`, id); err != nil {
		return fmt.Errorf("delete file %s: %w", id, err)
	}
	return nil
}
