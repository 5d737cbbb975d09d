// Package ledger persists run summaries and orphaned outbound orders.
//
// SQLite (WAL mode) is the default backend; Postgres is available through the
// pgx stdlib driver for shared deployments. Queries are written with ?
// placeholders and rebound for Postgres. The ledger never stores SN lists or
// shipment rows, only per-category counts and the orders that need manual
// reconciliation.
package ledger
