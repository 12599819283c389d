package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	sweep        SweepCounters
}

// SweepCounters accumulates breach sweep outcomes.
type SweepCounters struct {
	Runs       int64     `json:"runs"`
	Skipped    int64     `json:"skipped"`
	Errors     int64     `json:"errors"`
	Escalated  int64     `json:"escalated"`
	AutoClosed int64     `json:"auto_closed"`
	Conflicts  int64     `json:"conflicts"`
	Failed     int64     `json:"failed"`
	LastRun    time.Time `json:"last_run"`
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests map[string]int64 `json:"requests"`
	Errors   map[string]int64 `json:"errors"`
	Sweep    SweepCounters    `json:"sweep"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSweep adds one sweep cycle's outcome.
func (m *Metrics) RecordSweep(at time.Time, escalated, autoClosed, conflicts, failed int, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep.Runs++
	m.sweep.LastRun = at
	m.sweep.Escalated += int64(escalated)
	m.sweep.AutoClosed += int64(autoClosed)
	m.sweep.Conflicts += int64(conflicts)
	m.sweep.Failed += int64(failed)
	if err != nil {
		m.sweep.Errors++
	}
}

// RecordSweepSkipped counts a cycle not run because another replica holds the lease.
func (m *Metrics) RecordSweepSkipped() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep.Skipped++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests: make(map[string]int64, len(m.requestCount)),
		Errors:   make(map[string]int64, len(m.errorCount)),
		Sweep:    m.sweep,
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
