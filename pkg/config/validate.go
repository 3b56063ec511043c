package config

import (
	"errors"
	"fmt"
	"time"
)

// MinBulkTimeout is the smallest accepted pipeline.bulkTimeout.
const MinBulkTimeout = time.Second

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.Pipeline.BulkSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.bulkSize must be >= 1, got %d", c.Pipeline.BulkSize))
	}
	if c.Pipeline.BulkTimeout.Std() < MinBulkTimeout {
		errs = append(errs, fmt.Errorf("pipeline.bulkTimeout must be >= %s, got %s", MinBulkTimeout, c.Pipeline.BulkTimeout.Std()))
	}
	if c.Pipeline.DispatchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("pipeline.dispatchConcurrency must be >= 1, got %d", c.Pipeline.DispatchConcurrency))
	}
	if c.Pipeline.LogicalAddress == "" {
		errs = append(errs, errors.New("pipeline.logicalAddress is required"))
	}
	if c.Pipeline.Handoff.MaxRetries < 0 {
		errs = append(errs, errors.New("pipeline.handoff.maxRetries must not be negative"))
	}

	if c.Queues.Inbound == "" {
		errs = append(errs, errors.New("queues.inbound is required"))
	}
	if c.Queues.Batch == "" {
		errs = append(errs, errors.New("queues.batch is required"))
	}
	if c.Queues.DeadLetter == "" && c.Redis.URL == "" {
		errs = append(errs, errors.New("queues.deadLetter is required unless redis.url is set"))
	}
	if c.Queues.Inbound != "" && c.Queues.Inbound == c.Queues.Batch {
		errs = append(errs, errors.New("queues.inbound and queues.batch must differ"))
	}
	if c.Queues.Redelivery.MaxRetries < 0 {
		errs = append(errs, errors.New("queues.redelivery.maxRetries must not be negative"))
	}

	switch c.Queues.Transport {
	case "memory":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required for the kafka transport"))
		}
		switch c.Kafka.SASL.Mechanism {
		case "", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			errs = append(errs, fmt.Errorf("kafka.sasl.mechanism %q is not supported", c.Kafka.SASL.Mechanism))
		}
	default:
		errs = append(errs, fmt.Errorf("queues.transport must be kafka or memory, got %q", c.Queues.Transport))
	}

	switch c.StoreLog.Type {
	case "stub":
	case "http":
		if c.StoreLog.Endpoint == "" {
			errs = append(errs, errors.New("storeLog.endpoint is required for the http store"))
		}
	default:
		errs = append(errs, fmt.Errorf("storeLog.type must be http or stub, got %q", c.StoreLog.Type))
	}

	return errors.Join(errs...)
}
