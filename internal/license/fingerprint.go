package license

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// SignalPlaceholder is substituted for any optional signal the collecting
// environment cannot provide. Substitution, never omission, keeps the
// component count and ordering fixed so fingerprints stay comparable across
// collector versions.
const SignalPlaceholder = "unknown"

// FingerprintLength is the length in hex characters of a derived fingerprint.
const FingerprintLength = 32

// Signals are the raw environment observations a fingerprint is derived
// from. Empty fields are treated as unavailable and replaced with
// SignalPlaceholder during derivation.
type Signals struct {
	Screen   string `json:"screen"`
	Timezone string `json:"timezone"`
	Language string `json:"language"`
	Platform string `json:"platform"`
	Cores    string `json:"cores"`
	Memory   string `json:"memory"`
	GPU      string `json:"gpu"`
}

// components returns the prefixed signal list in derivation order. The
// order and prefixes are part of the fingerprint contract and must never
// change.
func (s Signals) components() []string {
	norm := func(v string) string {
		if v == "" {
			return SignalPlaceholder
		}
		return v
	}
	return []string{
		"screen:" + norm(s.Screen),
		"tz:" + norm(s.Timezone),
		"lang:" + norm(s.Language),
		"platform:" + norm(s.Platform),
		"cores:" + norm(s.Cores),
		"mem:" + norm(s.Memory),
		"gpu:" + norm(s.GPU),
	}
}

// Fingerprint derives the stable hardware fingerprint for a set of signals:
// SHA-256 over the joined component string, truncated to 32 hex characters,
// uppercased. Identical signals always produce identical fingerprints.
func Fingerprint(s Signals) string {
	sum := sha256.Sum256([]byte(strings.Join(s.components(), "|")))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:FingerprintLength]
}

// ValidFingerprint reports whether fp has the shape of a derived
// fingerprint: exactly 32 uppercase hex characters.
func ValidFingerprint(fp string) bool {
	if len(fp) != FingerprintLength {
		return false
	}
	for i := 0; i < len(fp); i++ {
		c := fp[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// CollectSignals probes the local environment for fingerprint signals. It
// is best effort and never fails: any probe that cannot produce a value
// leaves its field empty, which derivation then replaces with the
// placeholder. Server-side collection has no screen or GPU, so those are
// always placeholders here; agents embedded in the client product supply
// richer signals.
func CollectSignals() Signals {
	s := Signals{
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		Cores:    fmt.Sprintf("%d", runtime.NumCPU()),
	}
	if tz, _ := time.Now().Zone(); tz != "" {
		s.Timezone = tz
	}
	for _, key := range []string{"LANG", "LC_ALL"} {
		if v := os.Getenv(key); v != "" {
			s.Language = v
			break
		}
	}
	return s
}
