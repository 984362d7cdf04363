package store

import (
	"context"
	"fmt"
)

// RecordAudit appends an audit entry. Audit failures must never fail the
// operation that triggered them; callers log and continue.
func (s *Store) RecordAudit(ctx context.Context, entry *AuditEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// HasAudit reports whether any audit entry with the given action exists
// for a license key. The expiry sweep uses it to log each crossing once.
func (s *Store) HasAudit(ctx context.Context, key, action string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AuditEntry{}).
		Where("license_key = ? AND action = ?", key, action).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count audit entries: %w", err)
	}
	return count > 0, nil
}

// ListAudit returns the newest audit entries for a license key, up to
// limit (default 50).
func (s *Store) ListAudit(ctx context.Context, key string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []AuditEntry
	err := s.db.WithContext(ctx).
		Where("license_key = ?", key).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
