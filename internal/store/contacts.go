// Package store implements the relational target adapters backing the
// citizen portal, plus the job run log. Every mutating call touches a
// single row and is atomic on its own; the engine relies on that for
// per-record failure isolation.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"obecsync/internal/record"
)

// contactColumns maps record fields onto the contacts table. Columns are
// stored as empty strings, never NULL; List omits empty optional fields
// so the reconstructed record hashes the same way the normalizer's would.
var contactFieldColumns = []string{"subtitle", "address", "phone", "phone2", "email", "web", "maintenance"}

// ContactTable syncs one category of the portal's contact directory.
// Each category is reconciled as its own stage, so List stays scoped to
// keep one stage's diff from deleting another category's rows.
type ContactTable struct {
	db       *sql.DB
	category string
}

func NewContactTable(db *sql.DB, category string) *ContactTable {
	return &ContactTable{db: db, category: category}
}

func (t *ContactTable) List(ctx context.Context) ([]record.Record, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, category, title, subtitle, address, phone, phone2, email, web, maintenance, content_hash
		FROM contacts
		WHERE category = $1
	`, t.category)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var recs []record.Record
	for rows.Next() {
		var id, hash string
		vals := make([]string, 9)
		if err := rows.Scan(&id, &vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6], &vals[7], &vals[8], &hash); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		fields := map[string]string{
			"category": vals[0],
			"title":    vals[1],
		}
		for i, col := range contactFieldColumns {
			if vals[i+2] != "" {
				fields[col] = vals[i+2]
			}
		}
		recs = append(recs, record.Record{ID: id, Hash: hash, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return recs, nil
}

func (t *ContactTable) Create(ctx context.Context, rec record.Record) error {
	return t.upsert(ctx, rec)
}

func (t *ContactTable) Update(ctx context.Context, id string, rec record.Record) error {
	return t.upsert(ctx, rec)
}

// upsert writes the full row; a repeated Create after a crash converges
// instead of failing on the primary key.
func (t *ContactTable) upsert(ctx context.Context, rec record.Record) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO contacts (id, category, title, subtitle, address, phone, phone2, email, web, maintenance, content_hash, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			title = EXCLUDED.title,
			subtitle = EXCLUDED.subtitle,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			phone2 = EXCLUDED.phone2,
			email = EXCLUDED.email,
			web = EXCLUDED.web,
			maintenance = EXCLUDED.maintenance,
			content_hash = EXCLUDED.content_hash,
			updated_at = NOW()
	`, rec.ID,
		rec.Field("category"), rec.Field("title"), rec.Field("subtitle"),
		rec.Field("address"), rec.Field("phone"), rec.Field("phone2"),
		rec.Field("email"), rec.Field("web"), rec.Field("maintenance"),
		rec.Hash)
	if err != nil {
		return fmt.Errorf("upsert contact %s: %w", rec.ID, err)
	}
	return nil
}

func (t *ContactTable) Delete(ctx context.Context, id string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete contact %s: %w", id, err)
	}
	return nil
}
