package license

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// OfflineFileVersion is the only envelope version this build understands.
// Unknown versions are rejected at the parse stage so older servers never
// misinterpret a future format.
const OfflineFileVersion = 1

// Validation failure codes for offline license files. These are stable
// machine-readable identifiers surfaced to clients.
const (
	CodeParseError          = "PARSE_ERROR"
	CodeSignatureInvalid    = "SIGNATURE_INVALID"
	CodeFingerprintMismatch = "FINGERPRINT_MISMATCH"
	CodeLicenseExpired      = "LICENSE_EXPIRED"
)

// OfflinePayload is the signed body of an offline license file. Field order
// here defines the canonical serialization; the signature covers the exact
// payload bytes as stored in the envelope, so verification never depends on
// re-marshalling.
type OfflinePayload struct {
	LicenseKey          string       `json:"licenseKey"`
	Type                Type         `json:"type"`
	CompanyName         string       `json:"companyName"`
	Entitlements        Entitlements `json:"entitlements"`
	IssuedAt            time.Time    `json:"issuedAt"`
	ExpiresAt           *time.Time   `json:"expiresAt"`
	HardwareFingerprint string       `json:"hardwareFingerprint"`
	GeneratedAt         time.Time    `json:"generatedAt"`
}

type offlineEnvelope struct {
	Version   int             `json:"version"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// FileValidation is the outcome of validating an offline license file. It
// is always a value, never an error: invalid files are an expected input,
// not a fault. Payload is populated only when Valid is true.
type FileValidation struct {
	Valid   bool            `json:"valid"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload *OfflinePayload `json:"payload,omitempty"`
}

func invalidFile(code, message string) FileValidation {
	return FileValidation{Valid: false, Code: code, Message: message}
}

// EncodeOfflineFile serializes and signs payload into a portable offline
// license file: base64 over a JSON envelope of {version, payload, signature}
// where the signature is the HMAC of the embedded payload bytes.
func EncodeOfflineFile(signer *Signer, payload OfflinePayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode offline payload: %w", err)
	}
	env := offlineEnvelope{
		Version:   OfflineFileVersion,
		Payload:   body,
		Signature: signer.Sign(body),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode offline envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ValidateOfflineFile checks an offline license file against the expected
// hardware fingerprint. Checks run in a fixed order and stop at the first
// failure: envelope parse (including version), signature, fingerprint,
// expiry. The signature is verified over the raw payload bytes before those
// bytes are interpreted, so any tampering with the payload surfaces as
// SIGNATURE_INVALID rather than a parse failure.
func ValidateOfflineFile(signer *Signer, content, fingerprint string, now time.Time) FileValidation {
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return invalidFile(CodeParseError, "license file is not valid base64")
	}
	var env offlineEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return invalidFile(CodeParseError, "license file envelope is malformed")
	}
	if env.Version != OfflineFileVersion {
		return invalidFile(CodeParseError, fmt.Sprintf("unsupported license file version %d", env.Version))
	}
	if len(env.Payload) == 0 || env.Signature == "" {
		return invalidFile(CodeParseError, "license file envelope is incomplete")
	}

	if !signer.Verify(env.Payload, env.Signature) {
		return invalidFile(CodeSignatureInvalid, "license file signature verification failed")
	}

	var payload OfflinePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return invalidFile(CodeParseError, "license file payload is malformed")
	}

	if payload.HardwareFingerprint != fingerprint {
		return invalidFile(CodeFingerprintMismatch, "license file is bound to different hardware")
	}

	if payload.ExpiresAt != nil && now.After(*payload.ExpiresAt) {
		return invalidFile(CodeLicenseExpired, "license expired on "+payload.ExpiresAt.Format(time.RFC3339))
	}

	return FileValidation{Valid: true, Payload: &payload}
}

// OfflineFileName returns the download filename for a license's offline
// file.
func OfflineFileName(key string) string {
	return key + ".lic"
}
