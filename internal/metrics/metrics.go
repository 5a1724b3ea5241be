package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	AdapterRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smarthome_adapter_requests_total",
			Help: "Outbound platform requests by platform, method and outcome.",
		},
		[]string{"platform", "method", "outcome"},
	)

	CollectorCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smarthome_collector_cycles_total",
			Help: "Collector iterations by outcome.",
		},
		[]string{"outcome"},
	)

	ReadingsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smarthome_readings_written_total",
			Help: "Readings persisted, by kind (sensor type or external data type).",
		},
		[]string{"kind"},
	)

	AutomationCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smarthome_automation_commands_total",
			Help: "Commands emitted by automations, by automation, action and outcome.",
		},
		[]string{"automation", "action", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(AdapterRequests, CollectorCycles, ReadingsWritten, AutomationCommands)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
