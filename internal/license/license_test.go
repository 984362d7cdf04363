package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		stored    Status
		expiresAt *time.Time
		want      Status
	}{
		{"pending perpetual", StatusPending, nil, StatusPending},
		{"active perpetual", StatusActive, nil, StatusActive},
		{"active not yet expired", StatusActive, &future, StatusActive},
		{"active past expiry", StatusActive, &past, StatusExpired},
		{"pending past expiry", StatusPending, &past, StatusExpired},
		{"revoked perpetual", StatusRevoked, nil, StatusRevoked},
		{"revoked not yet expired", StatusRevoked, &future, StatusRevoked},
		{"revoked past expiry reports expired", StatusRevoked, &past, StatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveStatus(tt.stored, tt.expiresAt, now))
		})
	}
}

func TestDefaultEntitlements(t *testing.T) {
	trial := DefaultEntitlements(TypeTrial)
	assert.Equal(t, 5, trial.MaxUsers)
	assert.Equal(t, 2, trial.MaxProductionLines)
	assert.Equal(t, 10, trial.MaxSpcPlans)

	std := DefaultEntitlements(TypeStandard)
	assert.Equal(t, 20, std.MaxUsers)
	assert.Equal(t, 10, std.MaxProductionLines)
	assert.Equal(t, 50, std.MaxSpcPlans)

	pro := DefaultEntitlements(TypeProfessional)
	assert.Equal(t, 50, pro.MaxUsers)
	assert.Equal(t, 30, pro.MaxProductionLines)
	assert.Equal(t, 200, pro.MaxSpcPlans)
	assert.Contains(t, pro.Features, "api_access")

	ent := DefaultEntitlements(TypeEnterprise)
	assert.Equal(t, Unlimited, ent.MaxUsers)
	assert.Equal(t, Unlimited, ent.MaxProductionLines)
	assert.Equal(t, Unlimited, ent.MaxSpcPlans)
	assert.Contains(t, ent.Features, "multi_site")
}

func TestTypeValid(t *testing.T) {
	for _, typ := range Types() {
		assert.True(t, typ.Valid(), "type %s", typ)
	}
	assert.False(t, Type("platinum").Valid())
	assert.False(t, Type("").Valid())
}

func TestGenerateKeyFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		assert.True(t, ValidKeyFormat(key), "key %q does not match format", key)
		assert.False(t, seen[key], "duplicate key %q", key)
		seen[key] = true
	}
}

func TestValidKeyFormat(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"SPC-ABCD-EFGH-JKLM-NPQR", true},
		{"SPC-2345-6789-WXYZ-TUVW", true},
		{"spc-abcd-efgh-jklm-npqr", false},
		{"SPC-ABCD-EFGH-JKLM", false},
		{"SPC-ABCD-EFGH-JKLM-NPQR-STUV", false},
		{"SPC-AB1D-EFGH-JKLM-NPQR", false}, // 1 not in alphabet
		{"SPC-ABOD-EFGH-JKLM-NPQR", false}, // O not in alphabet
		{"XXX-ABCD-EFGH-JKLM-NPQR", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidKeyFormat(tt.key), "key %q", tt.key)
	}
}
