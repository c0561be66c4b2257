package metrics

import (
	"sync"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Generations   map[string]uint64
	BackendCalls  map[string]uint64 // keyed by "op:result"
	LedgerWrites  map[string]uint64
	TempFiles     map[string]uint64
	RateLimited   map[string]uint64
	BreakerStates map[string]int
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{snap: Snapshot{
		Generations:   map[string]uint64{},
		BackendCalls:  map[string]uint64{},
		LedgerWrites:  map[string]uint64{},
		TempFiles:     map[string]uint64{},
		RateLimited:   map[string]uint64{},
		BreakerStates: map[string]int{},
	}}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Generations:   copyCounts(m.snap.Generations),
		BackendCalls:  copyCounts(m.snap.BackendCalls),
		LedgerWrites:  copyCounts(m.snap.LedgerWrites),
		TempFiles:     copyCounts(m.snap.TempFiles),
		RateLimited:   copyCounts(m.snap.RateLimited),
		BreakerStates: copyStates(m.snap.BreakerStates),
	}
}

// IncGeneration increments the generation outcome counter.
func (m *InMemoryRecorder) IncGeneration(outcome string) {
	m.inc(m.snap.Generations, outcome)
}

// ObserveBackendCall counts a backend call by op and result.
func (m *InMemoryRecorder) ObserveBackendCall(op, result string, duration time.Duration) {
	m.inc(m.snap.BackendCalls, op+":"+result)
}

// SetBreakerState records the latest breaker state.
func (m *InMemoryRecorder) SetBreakerState(name string, state int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.BreakerStates[name] = state
}

// IncLedgerWrite increments the ledger write counter.
func (m *InMemoryRecorder) IncLedgerWrite(result string) {
	m.inc(m.snap.LedgerWrites, result)
}

// IncTempFile increments the temp file lifecycle counter.
func (m *InMemoryRecorder) IncTempFile(event string) {
	m.inc(m.snap.TempFiles, event)
}

// IncRateLimited increments the rate limit rejection counter.
func (m *InMemoryRecorder) IncRateLimited(scope string) {
	m.inc(m.snap.RateLimited, scope)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts[label]++
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyStates(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
