// Package metrics exposes build cache observability through a small
// Recorder interface with Prometheus and no-op implementations.
package metrics

import "time"

// Outcome labels a finished compile.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed" // the compiler reported a defect
	OutcomeError   Outcome = "error"  // tooling or storage failure
)

// Recorder defines observability hooks for the build cache. All methods
// must be safe to call on a nil *PrometheusRecorder.
type Recorder interface {
	ObserveCompile(d time.Duration, outcome Outcome)
	IncLookup(hit bool)
	IncEviction()
	SetResident(n int)
	AddSwept(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are disabled).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCompile(time.Duration, Outcome) {}
func (NoopRecorder) IncLookup(bool)                        {}
func (NoopRecorder) IncEviction()                          {}
func (NoopRecorder) SetResident(int)                       {}
func (NoopRecorder) AddSwept(int)                          {}
