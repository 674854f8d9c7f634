package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/arley101/dynamics-gateway/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "missing", "audit.db")); err == nil {
		t.Fatalf("expected error for nonexistent parent directory")
	}
}

func TestInsertAudit_AssignsIdentity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := &domain.AuditRecord{
		Action:   "memory_save_session",
		ClientIP: "203.0.113.9",
		Status:   200,
		Outcome:  "success",
	}
	if err := InsertAudit(ctx, db, rec); err != nil {
		t.Fatalf("InsertAudit: %v", err)
	}
	if rec.ID == "" {
		t.Fatalf("ID not assigned")
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt not assigned")
	}

	// Pre-assigned identity is preserved.
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec2 := &domain.AuditRecord{ID: "fixed-id", CreatedAt: fixed, Action: "x", Status: 400, Outcome: "error"}
	if err := InsertAudit(ctx, db, rec2); err != nil {
		t.Fatalf("InsertAudit (preset): %v", err)
	}
	if rec2.ID != "fixed-id" || !rec2.CreatedAt.Equal(fixed) {
		t.Fatalf("preset identity overwritten: %+v", rec2)
	}
}

func TestListAudits_NewestFirstAndLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := &domain.AuditRecord{
			Action:    "a",
			Status:    200,
			Outcome:   "success",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := InsertAudit(ctx, db, rec); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	rows, err := ListAudits(ctx, db, 3)
	if err != nil {
		t.Fatalf("ListAudits: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d; want 3", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].CreatedAt.After(rows[i-1].CreatedAt) {
			t.Fatalf("rows not ordered newest first: %v then %v", rows[i-1].CreatedAt, rows[i].CreatedAt)
		}
	}

	// Non-positive limit defaults to 100 (returns everything here).
	all, err := ListAudits(ctx, db, 0)
	if err != nil {
		t.Fatalf("ListAudits(0): %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("rows = %d; want 5", len(all))
	}
}

func TestPurgeAuditsBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		rec := &domain.AuditRecord{
			Action:    "a",
			Status:    200,
			Outcome:   "success",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := InsertAudit(ctx, db, rec); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	n, err := PurgeAuditsBefore(ctx, db, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("PurgeAuditsBefore: %v", err)
	}
	if n != 2 {
		t.Fatalf("purged = %d; want 2", n)
	}

	rows, err := ListAudits(ctx, db, 0)
	if err != nil {
		t.Fatalf("ListAudits: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("remaining = %d; want 2", len(rows))
	}
}
