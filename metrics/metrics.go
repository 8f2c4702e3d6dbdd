// Package metrics exposes the system's best-effort operational counters
// via prometheus/client_golang (spec.md §1 Non-goals: "performance
// telemetry semantics beyond best-effort emission" — no delivery
// guarantee, no cardinality bound beyond the fixed label sets below).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// EngineCalls counts Engine Client invocations by operation and outcome.
	EngineCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dadp_engine_calls_total",
		Help: "Engine Client calls by operation and outcome.",
	}, []string{"op", "outcome"})

	// CiphertextCacheLookups counts CiphertextCache hits and misses.
	CiphertextCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dadp_ciphertext_cache_total",
		Help: "Ciphertext-shape recognition cache lookups by result.",
	}, []string{"result"})

	// SyncTicks counts Sync Orchestrator periodic-loop outcomes.
	SyncTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dadp_sync_tick_total",
		Help: "Sync Orchestrator periodic check outcomes.",
	}, []string{"outcome"})

	// PolicyVersion reports the Policy Resolver's current snapshot version.
	PolicyVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dadp_policy_version",
		Help: "Current Policy Resolver snapshot version.",
	})
)

// MustRegister registers every collector above against reg. Call once at
// process start; the default registry is used if reg is nil.
func MustRegister(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(EngineCalls, CiphertextCacheLookups, SyncTicks, PolicyVersion)
}
