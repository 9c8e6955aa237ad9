// Package integration provides cross-package integration tests for conclave.
// These tests run workflow files through real sessions and check what ends up
// in the artifact store, the event stream and the SQLite archive.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
