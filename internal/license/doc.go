// Package license implements the licensing domain core for SPC Pulse:
// license tiers and entitlement limits, opaque key generation, hardware
// fingerprint derivation, the HMAC signature engine, and the offline
// license file format.
//
// # License Lifecycle
//
// A license is issued in the pending state and transitions to active on its
// first successful activation, which also binds it to a single hardware
// fingerprint. Revocation is an explicit, terminal administrative action.
// Expiry is never stored: it is always computed from the expiry timestamp at
// read time (see EffectiveStatus), so a stale "active" row can never outlive
// its own expiry date.
//
// # Hardware Binding
//
// The fingerprint is a best-effort stable device identifier, not a hardware
// root of trust. It is derived from a fixed, ordered set of environment
// signals hashed into a 32-character uppercase hex string. The license key
// authenticates what the holder is entitled to; the fingerprint
// authenticates on which single device.
//
// # Offline License Files
//
// For air-gapped installations an issuer can generate a portable, signed
// file binding a license to a specific fingerprint. The file is a versioned
// envelope around a canonically serialized payload plus an HMAC-SHA256
// signature; any mutation of the payload invalidates the signature. A valid
// file does not itself activate the license; it proves possession of a
// legitimately issued, fingerprint-matched credential so the subsequent
// activation call can succeed without network-issued nonces.
package license
