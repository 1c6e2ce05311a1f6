// Package metrics provides Prometheus observability for the lending engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects engine-level counters. All methods are nil-safe so
// wiring metrics stays optional.
type Metrics struct {
	// Workflow transitions by action and resulting status
	Transitions *prometheus.CounterVec

	// Money movement by transaction type
	LedgerEntries *prometheus.CounterVec

	// Optimistic-lock conflicts surfaced to callers
	Conflicts prometheus.Counter

	// Settlement previews served
	SettlementPreviews prometheus.Counter
}

// New registers and returns the engine metrics.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lending_workflow_transitions_total",
			Help: "Total workflow transitions by action and resulting status",
		}, []string{"action", "status"}),

		LedgerEntries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lending_ledger_entries_total",
			Help: "Total ledger entries appended by transaction type",
		}, []string{"type"}),

		Conflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lending_save_conflicts_total",
			Help: "Total optimistic-concurrency conflicts returned to callers",
		}),

		SettlementPreviews: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lending_settlement_previews_total",
			Help: "Total early-settlement previews computed",
		}),
	}
}

// ObserveTransition records one workflow transition.
func (m *Metrics) ObserveTransition(action, status string) {
	if m != nil {
		m.Transitions.WithLabelValues(action, status).Inc()
	}
}

// ObserveLedgerEntry records one appended ledger entry.
func (m *Metrics) ObserveLedgerEntry(txType string) {
	if m != nil {
		m.LedgerEntries.WithLabelValues(txType).Inc()
	}
}

// ObserveConflict records one optimistic-lock collision.
func (m *Metrics) ObserveConflict() {
	if m != nil {
		m.Conflicts.Inc()
	}
}

// ObserveSettlementPreview records one preview computation.
func (m *Metrics) ObserveSettlementPreview() {
	if m != nil {
		m.SettlementPreviews.Inc()
	}
}
