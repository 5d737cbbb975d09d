// Package services defines shared utilities consumed by the backend clients,
// the picking and shipment sagas, and the run coordinator.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, backend system names, product
//     categories, and serial numbers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (transport, backend-reported, authentication, orphaned order) so
//     callers can decide whether to abort a run, a category, or a single item.
//
// Use these helpers when wiring new backend calls so error classification and
// observability stay uniform across the three systems.
package services
