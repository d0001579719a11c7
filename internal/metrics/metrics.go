package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	GateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thesisboard_gate_decisions_total",
		Help: "Navigation decisions taken by the dashboard gate.",
	}, []string{"outcome"})

	AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thesisboard_auth_attempts_total",
		Help: "Authentication operations by kind and result.",
	}, []string{"operation", "result"})

	RPCCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thesisboard_rpc_calls_total",
		Help: "Role-scoped queries served by the backend.",
	}, []string{"rpc", "role", "result"})

	PanelLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thesisboard_panel_loads_total",
		Help: "Dashboard panel loads by outcome.",
	}, []string{"panel", "status"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "thesisboard_dashboard_sessions",
		Help: "Browser sessions held by the dashboard.",
	})

	BackendUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "thesisboard_backend_up",
		Help: "1 when the last backend health probe succeeded.",
	})
)

func init() {
	prometheus.MustRegister(GateDecisions, AuthAttempts, RPCCalls, PanelLoads, ActiveSessions, BackendUp)
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
