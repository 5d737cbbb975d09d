// Package preflight runs configuration and connectivity checks before the
// coordinator starts: directory permissions, backend reachability and
// credentials, OCR keys, notification settings, and the run ledger.
//
// Checks never log in and never mutate backend state. The CLI status and
// daemon commands render the results.
package preflight
