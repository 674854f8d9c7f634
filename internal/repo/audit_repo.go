// Package repo implements the data persistence layer for the audit trail,
// backed by GORM. This file provides repository helpers for AuditRecord rows
// written by the audit middleware.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arley101/dynamics-gateway/internal/domain"
)

// InsertAudit persists one audit row. The ID and CreatedAt are assigned here
// when unset so callers only describe the request.
func InsertAudit(ctx context.Context, db *gorm.DB, rec *domain.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(rec).Error
}

// ListAudits returns the most recent audit rows, newest first, capped at
// limit (values <= 0 default to 100).
func ListAudits(ctx context.Context, db *gorm.DB, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.AuditRecord
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// PurgeAuditsBefore deletes audit rows older than the cutoff and returns the
// number removed. Deployments run this from a periodic job to keep the table
// bounded.
func PurgeAuditsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.AuditRecord{})
	return res.RowsAffected, res.Error
}
