// Package metrics defines Prometheus metrics for the audit-log forwarder,
// covering ingestion, batch aggregation, dispatch outcomes, dead-lettering,
// transport redelivery and the downstream circuit breaker.
package metrics
