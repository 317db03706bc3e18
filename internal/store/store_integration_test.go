package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"obecsync/internal/engine"
	"obecsync/internal/record"
)

// openTestDB connects to the database named by SYNC_TEST_DATABASE_URL,
// resets the schema and applies the migrations. Tests that call it are
// skipped when no test database is configured.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("SYNC_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("SYNC_TEST_DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestContactTableRoundtrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	table := NewContactTable(db, "schools")

	rec := record.Contact{
		Category: "schools",
		Title:    "ZŠ Ořechov",
		Phone:    "+420 547 225 131",
		Email:    "skola@zsorechov.cz",
	}.Canonical()

	if err := table.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	recs, err := table.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	// The listed record must hash identically to the canonical form, or
	// every run would re-update unchanged rows.
	if recs[0].Hash != rec.Hash {
		t.Errorf("hash mismatch: stored %q, canonical %q (fields %v)", recs[0].Hash, rec.Hash, recs[0].Fields)
	}
}

func TestContactTableScopedByCategory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	schools := NewContactTable(db, "schools")
	doctors := NewContactTable(db, "doctors")

	if err := schools.Create(ctx, record.Contact{Category: "schools", Title: "ZŠ"}.Canonical()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := doctors.Create(ctx, record.Contact{Category: "doctors", Title: "MUDr. Horák"}.Canonical()); err != nil {
		t.Fatalf("create: %v", err)
	}

	recs, err := schools.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].Field("category") != "schools" {
		t.Errorf("schools list sees foreign categories: %v", recs)
	}
}

func TestContactTableUpdateAndDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	table := NewContactTable(db, "library")

	rec := record.Contact{Category: "library", Title: "Knihovna"}.Canonical()
	if err := table.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated := record.Contact{Category: "library", Title: "Knihovna", Phone: "+420 111 222 333"}.Canonical()
	if err := table.Update(ctx, updated.ID, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	recs, err := table.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].Field("phone") != "+420 111 222 333" {
		t.Errorf("recs = %v", recs)
	}

	if err := table.Delete(ctx, updated.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	recs, err = table.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records after delete", len(recs))
	}
}

func TestFolderDeleteCascadesFiles(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	folders := NewFolderTable(db)
	folderRec := record.Folder{Name: "Rozpočet obce"}.Canonical()
	if err := folders.Create(ctx, folderRec); err != nil {
		t.Fatalf("create folder: %v", err)
	}

	files := NewFileTable(db, folderRec.ID)
	fileRec := record.DocumentFile{
		Folder: "Rozpočet obce", Name: "Rozpočet 2024",
		URL: "https://example.test/r.pdf", FileType: "pdf",
		MimeType: "application/pdf", SizeBytes: 4096,
	}.Canonical()
	if err := files.Create(ctx, fileRec); err != nil {
		t.Fatalf("create file: %v", err)
	}

	if err := folders.Delete(ctx, folderRec.ID); err != nil {
		t.Fatalf("delete folder: %v", err)
	}
	recs, err := files.List(ctx)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("files survived folder deletion: %v", recs)
	}
}

func TestFileTableProtectsManualRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	folders := NewFolderTable(db)
	folderRec := record.Folder{Name: "Formuláře"}.Canonical()
	if err := folders.Create(ctx, folderRec); err != nil {
		t.Fatalf("create folder: %v", err)
	}

	// A row the portal operators inserted by hand.
	if _, err := db.ExecContext(ctx, `
		INSERT INTO files (id, folder_id, name, url, file_type, mime_type, size_bytes, from_website, content_hash)
		VALUES ('formul-e/manual', $1, 'Ruční dokument', 'https://example.test/m.pdf', 'pdf', 'application/pdf', 1, FALSE, 'x')
	`, folderRec.ID); err != nil {
		t.Fatalf("insert manual row: %v", err)
	}

	files := NewFileTable(db, folderRec.ID)
	recs, err := files.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("manual rows must be invisible to the sync, got %v", recs)
	}

	if err := files.Delete(ctx, "formul-e/manual"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE id = 'formul-e/manual'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Error("manual row was deleted by the sync")
	}
}

func TestRunLogRoundtrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	runLog := NewRunLog(db)

	res := engine.Result{
		Job:     "contacts-portal",
		Status:  engine.StatusPartialFailure,
		Created: 2, Updated: 1, Deleted: 0, Skipped: 3, Failed: 1,
		Failures:   []engine.Failure{{ID: "schools/zs", Kind: engine.KindStoreWrite, Message: "write refused"}},
		StartedAt:  time.Now().Add(-time.Minute).UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if err := runLog.InsertRun(ctx, res); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	runs, err := runLog.RecentRuns(ctx, "contacts-portal", 10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.Status != string(engine.StatusPartialFailure) || got.Created != 2 || got.Failed != 1 {
		t.Errorf("run = %+v", got)
	}
}
