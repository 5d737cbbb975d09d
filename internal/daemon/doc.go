// Package daemon coordinates the long-running fulfill process.
//
// It wires configuration, the run ledger, and the coordinator loop into a
// single lifecycle with flock-based locking to prevent multiple instances, and
// serves a small HTTP status API for the CLI.
//
// Keep orchestration logic here: the fulfillment steps live in the
// coordinator and backend packages while the daemon focuses on startup,
// shutdown, and reporting.
package daemon
