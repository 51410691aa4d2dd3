package metrics

import "time"

// ReconcileOutcome enumerates reconcile result categories for counters.
type ReconcileOutcome string

const (
	OutcomeCreated   ReconcileOutcome = "created"
	OutcomeUpdated   ReconcileOutcome = "updated"
	OutcomeUnchanged ReconcileOutcome = "unchanged"
	OutcomeFailed    ReconcileOutcome = "failed"
)

// Recorder defines observability hooks for remote API traffic and webhook
// reconciliation. Implementations may forward to Prometheus, OpenTelemetry,
// etc. All methods must be safe on the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveRequestDuration(method, statusClass string, d time.Duration)
	IncRequest(method, statusClass string)
	IncPageFetch(resource string)
	IncReconcileOutcome(outcome ReconcileOutcome)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRequestDuration(string, string, time.Duration) {}
func (NoopRecorder) IncRequest(string, string)                           {}
func (NoopRecorder) IncPageFetch(string)                                 {}
func (NoopRecorder) IncReconcileOutcome(ReconcileOutcome)                {}
