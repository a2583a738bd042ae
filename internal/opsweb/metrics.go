package opsweb

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/henrycontrol/turnkey/internal/protocol"
	"github.com/henrycontrol/turnkey/internal/turnstile"
)

// Metrics holds the Prometheus collectors served on /metrics.
type Metrics struct {
	registry      *prometheus.Registry
	deviceState   *prometheus.GaugeVec
	decisions     *prometheus.CounterVec
	validationErr prometheus.Counter
}

// NewMetrics constructs and registers the opsweb collector set on a
// fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		deviceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "turnkey",
			Name:      "device_state",
			Help:      "Current turnstile state per device, as an enum gauge (1 = current state).",
		}, []string{"device_id", "state"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnkey",
			Name:      "access_decisions_total",
			Help:      "Access validation decisions by outcome.",
		}, []string{"decision"}),
		validationErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "turnkey",
			Name:      "validation_errors_total",
			Help:      "Access validation attempts that failed outright (no decision reached).",
		}),
	}

	registry.MustRegister(m.deviceState, m.decisions, m.validationErr)
	return m
}

// Registry returns the Prometheus registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveDeviceState sets the gauge for deviceID's current state and
// clears any previously reported state for that device.
func (m *Metrics) ObserveDeviceState(deviceID string, state turnstile.State) {
	for s := turnstile.Idle; s <= turnstile.RotationTimeout; s++ {
		value := 0.0
		if s == state {
			value = 1.0
		}
		m.deviceState.WithLabelValues(deviceID, s.String()).Set(value)
	}
}

// ObserveDecision increments the access-decision counter for an
// AccessDecision outcome.
func (m *Metrics) ObserveDecision(decision protocol.AccessDecision) {
	m.decisions.WithLabelValues(decision.String()).Inc()
}

// ObserveValidationError increments the validation-error counter.
func (m *Metrics) ObserveValidationError() {
	m.validationErr.Inc()
}
