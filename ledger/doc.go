// Package ledger persists per-calendar indexing progress. The ledger is
// a single JSON file rewritten wholesale on every mutation; each
// mutating call is a synchronous checkpoint, so an interrupted run
// loses at most the batch that was in flight.
package ledger
