// Package app provides application initialization and lifecycle management
// for the license server. It wires configuration, logging, telemetry, the
// license store, services and the HTTP router together at startup and
// handles graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize logging and observability
//	3. Open the license store and run migrations
//	4. Initialize services with their dependencies
//	5. Set up HTTP handlers and middleware
//	6. Start the HTTP server and background jobs
//
// # Background Jobs
//
// Run starts, alongside the server, the expiry sweep (auditing licenses
// that crossed their expiry date) and, when configured, the one-way
// Google Sheets register sync. All jobs stop with the server on SIGINT
// or SIGTERM.
//
// # Error Handling
//
// All initialization errors are returned to the caller. The app never
// calls os.Exit() directly; main controls the exit process.
package app
