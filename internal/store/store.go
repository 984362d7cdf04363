// Package store persists license records and audit entries in SQLite via
// GORM. It knows nothing about HTTP or signing; services compose it with
// the domain package. All status values written here are stored statuses
// (pending, active, revoked); expiry is computed by readers, never stored.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"spcpulse/internal/license"
)

// ErrNotFound is returned when no record exists for a license key.
var ErrNotFound = errors.New("license record not found")

// ErrDuplicateKey is returned when an insert collides with an existing
// license key.
var ErrDuplicateKey = errors.New("license key already exists")

// Store wraps the GORM handle for license persistence.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the SQLite database at path and runs
// migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// serializes access instead of surfacing SQLITE_BUSY to callers.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Record{}, &AuditEntry{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Create inserts a new license record. A unique-key collision surfaces as
// ErrDuplicateKey so the caller can regenerate and retry.
func (s *Store) Create(ctx context.Context, rec *Record) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, rec.LicenseKey)
		}
		return fmt.Errorf("create license record: %w", err)
	}
	return nil
}

// GetByKey fetches the record for a license key.
func (s *Store) GetByKey(ctx context.Context, key string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("license_key = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get license record: %w", err)
	}
	return &rec, nil
}

// Filter narrows List results. Zero values mean no constraint. Status
// filters on the stored status; effective-status filtering happens in the
// service layer where "now" is known.
type Filter struct {
	Type   license.Type
	Status license.Status
	Limit  int
	Offset int
}

// List returns records matching the filter, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	q := s.db.WithContext(ctx).Model(&Record{}).Order("created_at DESC")
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var recs []Record
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list license records: %w", err)
	}
	return recs, nil
}

// BindFingerprint attempts to atomically bind a license to a hardware
// fingerprint and mark it active. The single conditional UPDATE admits
// exactly one winner under concurrent activation: it matches only when the
// license is not revoked and either has no fingerprint yet or already
// carries this exact one (idempotent re-activation). The bool result
// reports whether the bind took effect; on false the caller re-reads the
// record to classify the precise failure.
func (s *Store) BindFingerprint(ctx context.Context, key, fingerprint string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("license_key = ?", key).
		Where("status IN ?", []string{string(license.StatusPending), string(license.StatusActive)}).
		Where("hardware_fingerprint IS NULL OR hardware_fingerprint = ?", fingerprint).
		Updates(map[string]interface{}{
			"status":               string(license.StatusActive),
			"hardware_fingerprint": fingerprint,
			"activated_at":         now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("bind fingerprint: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Revoke marks a license revoked. Revoking an already-revoked license is a
// no-op success.
func (s *Store) Revoke(ctx context.Context, key string) error {
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("license_key = ?", key).
		Update("status", string(license.StatusRevoked))
	if res.Error != nil {
		return fmt.Errorf("revoke license: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Zero rows can mean missing key or an already-revoked row the
		// driver did not count; re-read to tell them apart.
		if _, err := s.GetByKey(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// ClearFingerprint releases a license's hardware binding for transfer to a
// new device. The license returns to pending; the next activation re-binds.
func (s *Store) ClearFingerprint(ctx context.Context, key string) error {
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("license_key = ?", key).
		Updates(map[string]interface{}{
			"status":               string(license.StatusPending),
			"hardware_fingerprint": nil,
			"activated_at":         nil,
		})
	if res.Error != nil {
		return fmt.Errorf("clear fingerprint: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetByKey(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Statistics summarizes the license register. Status counts use the
// effective status at the given time, so an active row past its expiry
// counts as expired.
type Statistics struct {
	Total            int64                    `json:"total"`
	ByType           map[license.Type]int64   `json:"by_type"`
	ByStatus         map[license.Status]int64 `json:"by_status"`
	ExpiringIn30Days int64                    `json:"expiring_in_30_days"`
}

// Statistics computes register statistics as of now.
func (s *Store) Statistics(ctx context.Context, now time.Time) (*Statistics, error) {
	var rows []struct {
		Type      license.Type
		Status    license.Status
		ExpiresAt *time.Time
	}
	err := s.db.WithContext(ctx).Model(&Record{}).
		Select("type", "status", "expires_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load statistics rows: %w", err)
	}

	stats := &Statistics{
		ByType:   make(map[license.Type]int64),
		ByStatus: make(map[license.Status]int64),
	}
	horizon := now.Add(30 * 24 * time.Hour)

	for _, row := range rows {
		stats.Total++
		stats.ByType[row.Type]++

		effective := license.EffectiveStatus(row.Status, row.ExpiresAt, now)
		stats.ByStatus[effective]++

		// Perpetual licenses never expire and never count as expiring.
		if row.ExpiresAt != nil &&
			(effective == license.StatusActive || effective == license.StatusPending) &&
			row.ExpiresAt.After(now) && !row.ExpiresAt.After(horizon) {
			stats.ExpiringIn30Days++
		}
	}

	return stats, nil
}

// ListNewlyExpired returns records whose stored status is still active or
// pending but whose expiry has passed. The background sweep logs these; it
// never rewrites status, which stays computed.
func (s *Store) ListNewlyExpired(ctx context.Context, now time.Time) ([]Record, error) {
	var recs []Record
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{string(license.StatusPending), string(license.StatusActive)}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list expired records: %w", err)
	}
	return recs, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
