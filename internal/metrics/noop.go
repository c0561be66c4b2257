package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncGeneration is a no-op.
func (n *NoopRecorder) IncGeneration(outcome string) {}

// ObserveBackendCall is a no-op.
func (n *NoopRecorder) ObserveBackendCall(op, result string, duration time.Duration) {}

// SetBreakerState is a no-op.
func (n *NoopRecorder) SetBreakerState(name string, state int) {}

// IncLedgerWrite is a no-op.
func (n *NoopRecorder) IncLedgerWrite(result string) {}

// IncTempFile is a no-op.
func (n *NoopRecorder) IncTempFile(event string) {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited(scope string) {}
