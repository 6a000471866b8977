// Package mock provides a deterministic in-process implementation of
// ai.Embedder for tests and offline runs. Vectors are derived from a hash
// of the input text, so identical text always embeds identically.
package mock
