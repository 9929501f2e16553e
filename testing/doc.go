// Package testing provides test utilities for taskchain.
//
// It offers an embedded NATS server with JetStream for integration tests and
// reproducible task fixtures. It follows Go's convention of providing testing
// utilities in a dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - GenerateTasks: Seeded task population with fan-out potential owners
//   - NewTestLogger: Logger that writes to the test log
//
// Example usage:
//
//	import (
//	    "testing"
//	    tctest "github.com/arloliu/taskchain/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := tctest.StartEmbeddedNATS(t)
//	    tasks := tctest.GenerateTasks(1, 50, 8)
//	}
package testing
