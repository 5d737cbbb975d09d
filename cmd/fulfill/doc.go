// Command fulfill drives the warehouse fulfillment automation: one-shot runs,
// the long-running daemon, backend login checks, run history, and orphaned
// order reconciliation.
package main
