package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forwarder_events_received_total",
		Help: "Total number of raw log events consumed from the inbound queue",
	})
	EventsSplit = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forwarder_events_split_total",
		Help: "Total number of single-resource events produced by the splitter",
	})
	// reason is one of malformed, no_resources
	EventsDiscarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarder_events_discarded_total",
		Help: "Total number of inbound events discarded as unrecoverable",
	}, []string{"reason"})
	BatchPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "forwarder_batch_pending_items",
		Help: "Number of items in the currently open batch",
	})
	// trigger is one of size, timeout, shutdown
	BatchesSealed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarder_batches_sealed_total",
		Help: "Total number of batches sealed by the aggregator, by trigger",
	}, []string{"trigger"})
	BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forwarder_batch_size_items",
		Help:    "Number of events per sealed batch",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
	BatchHandoffErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forwarder_batch_handoff_errors_total",
		Help: "Total number of sealed batches that could not be handed to the batch queue",
	})
	// outcome is one of accepted, rejected, unavailable, invalid
	BatchesDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarder_batches_dispatched_total",
		Help: "Total number of dispatched batches by outcome",
	}, []string{"outcome"})
	DispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forwarder_dispatch_duration_seconds",
		Help:    "Latency of downstream store calls",
		Buckets: prometheus.DefBuckets,
	})
	DeadLettered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarder_dead_lettered_total",
		Help: "Total number of payloads moved to a dead-letter destination",
	}, []string{"reason"})
	Redeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarder_redeliveries_total",
		Help: "Total number of message redeliveries performed by the transport",
	}, []string{"destination"})
	RedeliveriesExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarder_redeliveries_exhausted_total",
		Help: "Total number of messages that used up their redelivery budget",
	}, []string{"destination"})
	QueueMessagesInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "forwarder_queue_messages_in_flight",
		Help: "Number of messages currently being published",
	}, []string{"destination"})
	QueueErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarder_queue_errors_total",
		Help: "Total number of transport errors by destination and error type",
	}, []string{"destination", "error_type"})
	StoreCircuitState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "forwarder_store_circuit_breaker_state",
		Help: "Downstream circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"store"})
	StoreCircuitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarder_store_circuit_breaker_rejections_total",
		Help: "Total number of store calls rejected by an open circuit",
	}, []string{"store"})
)

func init() {
	prometheus.MustRegister(EventsReceived)
	prometheus.MustRegister(EventsSplit)
	prometheus.MustRegister(EventsDiscarded)
	prometheus.MustRegister(BatchPending)
	prometheus.MustRegister(BatchesSealed)
	prometheus.MustRegister(BatchSize)
	prometheus.MustRegister(BatchHandoffErrors)
	prometheus.MustRegister(BatchesDispatched)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(DeadLettered)
	prometheus.MustRegister(Redeliveries)
	prometheus.MustRegister(RedeliveriesExhausted)
	prometheus.MustRegister(QueueMessagesInFlight)
	prometheus.MustRegister(QueueErrors)
	prometheus.MustRegister(StoreCircuitState)
	prometheus.MustRegister(StoreCircuitRejections)
}

// MetricsHandler returns the handler serving the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
