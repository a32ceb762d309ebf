package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Instruction requests sent to the gateway
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smilepay_gateway_requests_total",
		Help: "Total instruction requests sent to SmilePay",
	}, []string{
		"method",  // bank_transfer, barcode, ibon, famiport
		"outcome", // success, network, timeout, http_status, malformed_response, rejected, circuit_open
	})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "smilepay_gateway_request_duration_seconds",
		Help: "Latency of SmilePay instruction requests",
		// Bounded by the 10s client timeout
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{
		"method",
	})

	gatewayCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smilepay_gateway_circuit_state",
		Help: "Circuit breaker state for the SmilePay endpoint (0=closed, 1=open, 2=half-open)",
	})

	// Instructions issued (draft -> awaiting_payment)
	instructionsIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smilepay_instructions_issued_total",
		Help: "Payment instructions issued and persisted",
	}, []string{
		"method",
	})

	// Inbound notifications by outcome
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smilepay_notifications_total",
		Help: "Inbound SmilePay notifications by outcome",
	}, []string{
		"classif", // B, C, E, F or empty when malformed
		"outcome", // completed, already_completed, rejected, failed
		"reason",  // error code for rejected/failed, empty otherwise
	})

	// Amount settled through verified notifications, in whole TWD
	settledAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smilepay_settled_amount_twd_total",
		Help: "Total amount confirmed by verified notifications (whole TWD)",
	}, []string{
		"method",
	})
)

// RecordGatewayRequest records one instruction request and its latency
func RecordGatewayRequest(method, outcome string, durationSeconds float64) {
	gatewayRequestsTotal.WithLabelValues(method, outcome).Inc()
	gatewayRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// SetGatewayCircuitState exports the breaker state as a gauge
func SetGatewayCircuitState(state int) {
	gatewayCircuitState.Set(float64(state))
}

// RecordInstructionIssued records a transaction moving to awaiting_payment
func RecordInstructionIssued(method string) {
	instructionsIssuedTotal.WithLabelValues(method).Inc()
}

// RecordNotification records the outcome of an inbound notification
func RecordNotification(classif, outcome, reason string) {
	notificationsTotal.WithLabelValues(classif, outcome, reason).Inc()
}

// RecordSettlement records the amount confirmed by a verified notification
func RecordSettlement(method string, amount int64) {
	settledAmountTotal.WithLabelValues(method).Add(float64(amount))
}
