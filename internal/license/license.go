package license

import "time"

// Type identifies the commercial tier of a license. The tier determines the
// entitlement limits attached at issuance; it is stored only in the license
// record and is deliberately not recoverable from the key string.
type Type string

const (
	TypeTrial        Type = "trial"
	TypeStandard     Type = "standard"
	TypeProfessional Type = "professional"
	TypeEnterprise   Type = "enterprise"
)

// Types lists every known tier in a stable order, used for statistics
// partitioning and input validation.
func Types() []Type {
	return []Type{TypeTrial, TypeStandard, TypeProfessional, TypeEnterprise}
}

// Valid reports whether t is a known license tier.
func (t Type) Valid() bool {
	switch t {
	case TypeTrial, TypeStandard, TypeProfessional, TypeEnterprise:
		return true
	}
	return false
}

// Status is the lifecycle state of a license. Only pending, active and
// revoked are ever persisted; expired exists purely as a computed value.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// Statuses lists every externally visible status in a stable order.
func Statuses() []Status {
	return []Status{StatusPending, StatusActive, StatusRevoked, StatusExpired}
}

// Stored reports whether s is a status that may be persisted. Expired is
// never stored; it is derived from the expiry timestamp at read time.
func (s Status) Stored() bool {
	switch s {
	case StatusPending, StatusActive, StatusRevoked:
		return true
	}
	return false
}

// Unlimited is the sentinel entitlement value for the enterprise tier.
const Unlimited = -1

// Entitlements are the numeric and feature limits attached to a license at
// issuance. They are immutable for the life of the license.
type Entitlements struct {
	MaxUsers           int      `json:"max_users"`
	MaxProductionLines int      `json:"max_production_lines"`
	MaxSpcPlans        int      `json:"max_spc_plans"`
	Features           []string `json:"features"`
}

// DefaultEntitlements returns the limits a freshly issued license of the
// given tier receives. Enterprise uses the Unlimited sentinel.
func DefaultEntitlements(t Type) Entitlements {
	switch t {
	case TypeStandard:
		return Entitlements{
			MaxUsers:           20,
			MaxProductionLines: 10,
			MaxSpcPlans:        50,
			Features:           []string{"basic_analysis", "basic_reports", "export_pdf", "export_excel"},
		}
	case TypeProfessional:
		return Entitlements{
			MaxUsers:           50,
			MaxProductionLines: 30,
			MaxSpcPlans:        200,
			Features: []string{
				"basic_analysis", "basic_reports", "export_pdf", "export_excel",
				"advanced_analytics", "webhooks", "api_access",
			},
		}
	case TypeEnterprise:
		return Entitlements{
			MaxUsers:           Unlimited,
			MaxProductionLines: Unlimited,
			MaxSpcPlans:        Unlimited,
			Features: []string{
				"basic_analysis", "basic_reports", "export_pdf", "export_excel",
				"advanced_analytics", "webhooks", "api_access",
				"multi_site", "custom_branding", "priority_support",
			},
		}
	default: // trial
		return Entitlements{
			MaxUsers:           5,
			MaxProductionLines: 2,
			MaxSpcPlans:        10,
			Features:           []string{"basic_analysis", "basic_reports"},
		}
	}
}

// EffectiveStatus derives the externally visible status of a license from
// its stored status and expiry timestamp. Expiry always wins once expiresAt
// has passed; otherwise an explicit revoke takes precedence over active.
// A nil expiresAt means the license is perpetual.
func EffectiveStatus(stored Status, expiresAt *time.Time, now time.Time) Status {
	if expiresAt != nil && now.After(*expiresAt) {
		return StatusExpired
	}
	if stored == StatusRevoked {
		return StatusRevoked
	}
	return stored
}
