// Package badger implements the vector index on BadgerDB. Records are
// stored as JSON values under a document key prefix and similarity
// queries brute-force score all records, which is adequate for the
// per-instance collection sizes this index serves.
package badger
