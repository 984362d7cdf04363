package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fullSignals() Signals {
	return Signals{
		Screen:   "1920x1080x24",
		Timezone: "Europe/Berlin",
		Language: "de-DE",
		Platform: "linux/amd64",
		Cores:    "8",
		Memory:   "16",
		GPU:      "NVIDIA RTX A2000",
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(fullSignals())
	b := Fingerprint(fullSignals())
	assert.Equal(t, a, b)
}

func TestFingerprintShape(t *testing.T) {
	fp := Fingerprint(fullSignals())
	assert.Len(t, fp, FingerprintLength)
	assert.True(t, ValidFingerprint(fp), "fingerprint %q", fp)
}

func TestFingerprintSensitiveToEachSignal(t *testing.T) {
	base := Fingerprint(fullSignals())

	mutations := []func(*Signals){
		func(s *Signals) { s.Screen = "2560x1440x24" },
		func(s *Signals) { s.Timezone = "UTC" },
		func(s *Signals) { s.Language = "en-US" },
		func(s *Signals) { s.Platform = "windows/amd64" },
		func(s *Signals) { s.Cores = "16" },
		func(s *Signals) { s.Memory = "32" },
		func(s *Signals) { s.GPU = "Intel UHD" },
	}
	for i, mutate := range mutations {
		s := fullSignals()
		mutate(&s)
		assert.NotEqual(t, base, Fingerprint(s), "mutation %d did not change fingerprint", i)
	}
}

func TestFingerprintMissingSignalsUsePlaceholder(t *testing.T) {
	partial := fullSignals()
	partial.Memory = ""
	partial.GPU = ""

	explicit := fullSignals()
	explicit.Memory = SignalPlaceholder
	explicit.GPU = SignalPlaceholder

	// An empty signal and the literal placeholder must derive identically;
	// components are substituted, never dropped.
	assert.Equal(t, Fingerprint(explicit), Fingerprint(partial))
	assert.NotEqual(t, Fingerprint(fullSignals()), Fingerprint(partial))
}

func TestFingerprintAllSignalsMissing(t *testing.T) {
	fp := Fingerprint(Signals{})
	assert.Len(t, fp, FingerprintLength)
	assert.True(t, ValidFingerprint(fp))
}

func TestCollectSignalsNeverEmpty(t *testing.T) {
	s := CollectSignals()
	assert.NotEmpty(t, s.Platform)
	assert.NotEmpty(t, s.Cores)
	// Derivation over collected signals must always succeed.
	assert.True(t, ValidFingerprint(Fingerprint(s)))
}

func TestValidFingerprint(t *testing.T) {
	assert.True(t, ValidFingerprint("0123456789ABCDEF0123456789ABCDEF"))
	assert.False(t, ValidFingerprint("0123456789abcdef0123456789abcdef"), "lowercase rejected")
	assert.False(t, ValidFingerprint("0123456789ABCDEF"), "too short")
	assert.False(t, ValidFingerprint("0123456789ABCDEF0123456789ABCDEG"), "non-hex char")
	assert.False(t, ValidFingerprint(""))
}
