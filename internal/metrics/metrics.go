// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Gateway outcomes. outcome is "success" or an error kind name.
	IncGeneration(outcome string)

	// Backend calls. op is "upload" or "generate"; result is "ok" or a failure kind.
	ObserveBackendCall(op, result string, duration time.Duration)
	SetBreakerState(name string, state int)

	// Ledger writes. result is "ok", "conflict" or "failed".
	IncLedgerWrite(result string)

	// Temporary upload lifecycle. event is "created", "released" or "release_failed".
	IncTempFile(event string)

	// Rate limiting. scope is "ip" or "key".
	IncRateLimited(scope string)
}
