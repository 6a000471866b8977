// Package watch triggers incremental ingestion runs in response to
// event store changes, combining filesystem notifications with a
// periodic resync schedule.
package watch
