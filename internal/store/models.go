package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"spcpulse/internal/license"
)

// Record is the persisted license row. LicenseKey is the external
// identifier; the numeric ID never leaves this package's callers.
type Record struct {
	ID                  uint                `json:"-" gorm:"primaryKey"`
	LicenseKey          string              `json:"license_key" gorm:"uniqueIndex;size:24;not null"`
	Type                license.Type        `json:"type" gorm:"size:16;not null"`
	Status              license.Status      `json:"status" gorm:"size:16;not null;default:pending"`
	CompanyName         string              `json:"company_name" gorm:"size:255;not null"`
	ContactEmail        string              `json:"contact_email" gorm:"size:255"`
	Entitlements        EntitlementsColumn  `json:"entitlements" gorm:"type:text;not null"`
	HardwareFingerprint *string             `json:"hardware_fingerprint,omitempty" gorm:"size:32;index"`
	IssuedAt            time.Time           `json:"issued_at" gorm:"not null"`
	ExpiresAt           *time.Time          `json:"expires_at,omitempty"`
	ActivatedAt         *time.Time          `json:"activated_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// EffectiveStatus returns the record's externally visible status as of now.
func (r *Record) EffectiveStatus(now time.Time) license.Status {
	return license.EffectiveStatus(r.Status, r.ExpiresAt, now)
}

// EntitlementsColumn stores license.Entitlements as a JSON text column.
type EntitlementsColumn license.Entitlements

// Value implements driver.Valuer.
func (e EntitlementsColumn) Value() (driver.Value, error) {
	raw, err := json.Marshal(license.Entitlements(e))
	if err != nil {
		return nil, fmt.Errorf("marshal entitlements: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (e *EntitlementsColumn) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		*e = EntitlementsColumn{}
		return nil
	default:
		return fmt.Errorf("unsupported entitlements column type %T", src)
	}
	return json.Unmarshal(raw, (*license.Entitlements)(e))
}

// AuditEntry records a licensing event: activation, revocation, transfer,
// offline file issuance, heartbeat. Entries are append-only.
type AuditEntry struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	LicenseKey string    `json:"license_key" gorm:"size:24;index;not null"`
	Action     string    `json:"action" gorm:"size:32;not null"`
	IP         string    `json:"ip,omitempty" gorm:"size:64"`
	UserAgent  string    `json:"user_agent,omitempty" gorm:"size:255"`
	Detail     string    `json:"detail,omitempty" gorm:"size:512"`
	CreatedAt  time.Time `json:"created_at"`
}

// Audit actions recorded by the service layer.
const (
	AuditActionIssued           = "issued"
	AuditActionActivated        = "activated"
	AuditActionActivationFailed = "activation_failed"
	AuditActionRevoked          = "revoked"
	AuditActionTransferred      = "transferred"
	AuditActionOfflineGenerated = "offline_file_generated"
	AuditActionOfflineValidated = "offline_file_validated"
	AuditActionHeartbeat        = "heartbeat"
	AuditActionExpired          = "expired"
)
