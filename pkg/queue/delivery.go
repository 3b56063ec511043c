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

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/metrics"
)

// ErrUnsettled is returned by deliver when a message was neither acknowledged
// nor handed to the exhausted destination. The caller must not commit it.
var ErrUnsettled = errors.New("message left unacknowledged")

// deliver runs h against msg, redelivering with backoff while the handler
// asks for it. A nil return means the message is settled and may be committed.
func deliver(ctx context.Context, destination string, msg Message, h Handler, opts ConsumerOptions, logger *zap.Logger) error {
	policy := opts.Redelivery
	delay := policy.InitialDelay

	for attempt := 1; ; attempt++ {
		msg.DeliveryCount = attempt
		msg.Redelivered = attempt > 1

		err := h(ctx, msg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrUnsettled, ctx.Err())
		}

		if !IsRedeliverable(err) {
			logger.Warn("discarding message after non-retryable failure",
				zap.String("destination", destination),
				zap.Int("delivery_count", attempt),
				zap.String("error", err.Error()))
			return nil
		}

		if attempt > policy.MaxRetries {
			metrics.RedeliveriesExhausted.WithLabelValues(destination).Inc()
			if opts.Exhausted == nil {
				logger.Error("redelivery attempts exhausted, dropping message",
					zap.String("destination", destination),
					zap.Int("delivery_count", attempt),
					zap.Error(err))
				return nil
			}
			if perr := opts.Exhausted.Publish(ctx, msg.Payload); perr != nil {
				logger.Error("failed to move exhausted message",
					zap.String("destination", destination),
					zap.String("exhausted_destination", opts.Exhausted.Name()),
					zap.Error(perr))
				return fmt.Errorf("%w: %w", ErrUnsettled, perr)
			}
			metrics.DeadLettered.WithLabelValues("redelivery_exhausted").Inc()
			logger.Error("redelivery attempts exhausted, message moved",
				zap.String("destination", destination),
				zap.String("exhausted_destination", opts.Exhausted.Name()),
				zap.Int("delivery_count", attempt),
				zap.Error(err))
			return nil
		}

		metrics.Redeliveries.WithLabelValues(destination).Inc()
		logger.Debug("scheduling redelivery",
			zap.String("destination", destination),
			zap.Int("delivery_count", attempt),
			zap.Duration("backoff", delay))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrUnsettled, ctx.Err())
		case <-time.After(delay):
		}
		delay = policy.Next(delay)
	}
}

// PublishWithRetry publishes payload, retrying with backoff per policy.
func PublishWithRetry(ctx context.Context, p Publisher, policy RetryPolicy, payload []byte, logger *zap.Logger) error {
	delay := policy.InitialDelay
	for attempt := 0; ; attempt++ {
		err := p.Publish(ctx, payload)
		if err == nil {
			return nil
		}
		if attempt >= policy.MaxRetries {
			return fmt.Errorf("publish to %s failed after %d attempts: %w", p.Name(), attempt+1, err)
		}

		logger.Warn("publish failed, retrying",
			zap.String("destination", p.Name()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", policy.MaxRetries),
			zap.Duration("backoff", delay),
			zap.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = policy.Next(delay)
	}
}
