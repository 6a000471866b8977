// Package core defines the domain types shared across caldex: raw calendar
// event records as they appear in the append-only event log, the retrieval
// documents derived from them, and deterministic document identity.
package core
