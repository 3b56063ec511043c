/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/config"
	"github.com/telekom/auditlog-forwarder/pkg/queue"
	"github.com/telekom/auditlog-forwarder/pkg/storelog"
)

// Components are the external collaborators of a Pipeline.
type Components struct {
	Transport queue.Transport
	// DeadLetter receives rejected and redelivery-exhausted batches.
	DeadLetter queue.Publisher
	Store      storelog.Store

	// Stub is set when Store is backed by an in-memory stub.
	Stub *storelog.MemoryStore
	// Breaker is set when Store is wrapped in a circuit breaker.
	Breaker *storelog.BreakerStore
}

// Close releases the dead-letter publisher and the transport.
func (c Components) Close() error {
	var firstErr error
	if c.DeadLetter != nil {
		if err := c.DeadLetter.Close(); err != nil {
			firstErr = err
		}
	}
	if c.Transport != nil {
		if err := c.Transport.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildComponents creates the transport, dead-letter destination and store
// selected by cfg.
func BuildComponents(cfg config.Config, logger *zap.Logger) (Components, error) {
	var c Components

	transport, err := BuildTransport(cfg, logger)
	if err != nil {
		return c, err
	}
	c.Transport = transport

	if cfg.Redis.URL != "" {
		dlq, err := queue.NewRedisPublisher(cfg.Redis.URL, cfg.Redis.DeadLetterKey, logger)
		if err != nil {
			_ = c.Close()
			return Components{}, fmt.Errorf("failed to create Redis dead-letter publisher: %w", err)
		}
		c.DeadLetter = dlq
	} else {
		dlq, err := transport.Publisher(cfg.Queues.DeadLetter)
		if err != nil {
			_ = c.Close()
			return Components{}, fmt.Errorf("failed to open dead-letter destination %s: %w", cfg.Queues.DeadLetter, err)
		}
		c.DeadLetter = dlq
	}

	switch cfg.StoreLog.Type {
	case "stub":
		c.Stub = storelog.NewMemoryStore()
		c.Store = c.Stub
		logger.Warn("using in-memory stub log store, logs are not persisted")
	default:
		store, err := storelog.NewHTTPStore(storelog.HTTPStoreConfig{
			Endpoint:           cfg.StoreLog.Endpoint,
			Timeout:            cfg.StoreLog.Timeout.Std(),
			CAFile:             cfg.StoreLog.CAFile,
			CertFile:           cfg.StoreLog.CertFile,
			KeyFile:            cfg.StoreLog.KeyFile,
			InsecureSkipVerify: cfg.StoreLog.InsecureSkipVerify,
		}, logger)
		if err != nil {
			_ = c.Close()
			return Components{}, err
		}
		c.Store = store
	}

	if cb := cfg.StoreLog.CircuitBreaker; cb.Enabled {
		c.Breaker = storelog.NewBreakerStore(cfg.StoreLog.Type, c.Store, storelog.BreakerConfig{
			FailureThreshold: cb.FailureThreshold,
			SuccessThreshold: cb.SuccessThreshold,
			OpenTimeout:      cb.OpenTimeout.Std(),
		}, logger)
		c.Store = c.Breaker
	}

	return c, nil
}

// BuildTransport opens the transport selected by cfg.Queues.Transport.
func BuildTransport(cfg config.Config, logger *zap.Logger) (queue.Transport, error) {
	if cfg.Queues.Transport == "memory" {
		logger.Warn("using in-memory transport, queued messages do not survive a restart")
		return queue.NewMemoryTransport(0, logger), nil
	}

	kcfg := queue.KafkaConfig{
		Brokers:          cfg.Kafka.Brokers,
		GroupID:          cfg.Queues.ConsumerGroup,
		WriteTimeout:     cfg.Kafka.WriteTimeout.Std(),
		RequiredAcks:     cfg.Kafka.RequiredAcks,
		CompressionCodec: cfg.Kafka.Compression,
	}
	if t := cfg.Kafka.TLS; t.Enabled {
		tlsCfg, err := queue.LoadKafkaTLSConfig(t.CAFile, t.CertFile, t.KeyFile, t.InsecureSkipVerify)
		if err != nil {
			return nil, err
		}
		kcfg.TLS = tlsCfg
	}
	if s := cfg.Kafka.SASL; s.Mechanism != "" {
		kcfg.SASL = &queue.KafkaSASLConfig{
			Mechanism: s.Mechanism,
			Username:  s.Username,
			Password:  s.Password,
		}
	}
	return queue.NewKafkaTransport(kcfg, logger)
}

func retryPolicy(r config.Retry) queue.RetryPolicy {
	return queue.RetryPolicy{
		MaxRetries:        r.MaxRetries,
		InitialDelay:      r.InitialDelay.Std(),
		MaxDelay:          r.MaxDelay.Std(),
		BackoffMultiplier: r.BackoffMultiplier,
	}
}
