// Package http implements the HTTP handlers for the license server. It is
// a thin layer between chi and the service layer: handlers parse and
// validate requests, delegate to services, and translate domain errors
// into RFC 7807 problem details.
//
// The API splits into a public surface used by SPC Pulse installations
// (activation, heartbeat, offline file validation) and an admin surface
// behind bearer auth (issuance, revocation, transfer, audit, export).
package http
