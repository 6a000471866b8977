// Package config loads and validates the caldex configuration from a YAML
// file with environment variable overrides. Derived filesystem locations
// (event store root, ledger path, vector store path) are exposed as methods
// so every component agrees on the deployment layout.
package config
