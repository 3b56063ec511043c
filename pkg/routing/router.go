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

// Package routing acts on dispatch outcomes: it acknowledges accepted
// batches, dead-letters rejected ones and hands unavailable ones back to the
// transport for redelivery.
package routing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/dispatch"
	"github.com/telekom/auditlog-forwarder/pkg/metrics"
	"github.com/telekom/auditlog-forwarder/pkg/queue"
)

// Dispatcher is the part of dispatch.Dispatcher the router needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload []byte) (dispatch.Result, error)
}

// Router is a queue.Handler for the batch destination.
type Router struct {
	dispatcher Dispatcher
	deadLetter queue.Publisher
	logger     *zap.Logger
}

// New creates a new Router that dead-letters to deadLetter.
func New(d Dispatcher, deadLetter queue.Publisher, logger *zap.Logger) *Router {
	return &Router{
		dispatcher: d,
		deadLetter: deadLetter,
		logger:     logger.Named("router"),
	}
}

// Handle dispatches one batch message. It returns nil when the message is
// settled and a redeliverable error when it must be tried again.
func (r *Router) Handle(ctx context.Context, msg queue.Message) error {
	log := r.logger.With(
		zap.Bool("redelivered", msg.Redelivered),
		zap.Int("delivery_count", msg.DeliveryCount))

	result, err := r.dispatcher.Dispatch(ctx, msg.Payload)
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidBatch) {
			return r.deadLetterPayload(ctx, log, msg, "invalid_batch", err.Error())
		}
		return r.unavailable(log, msg, err.Error())
	}

	switch result.Outcome {
	case dispatch.Accepted:
		log.Debug("batch accepted", zap.Int("logs", result.Logs))
		return nil
	case dispatch.Rejected:
		return r.deadLetterPayload(ctx, log, msg, "rejected", result.Reason)
	default:
		return r.unavailable(log, msg, result.Reason)
	}
}

func (r *Router) deadLetterPayload(ctx context.Context, log *zap.Logger, msg queue.Message, reason, detail string) error {
	log.Error("batch rejected, moving to dead-letter destination",
		zap.String("reason", reason),
		zap.String("detail", detail),
		zap.String("destination", r.deadLetter.Name()))

	if err := r.deadLetter.Publish(ctx, msg.Payload); err != nil {
		log.Error("failed to dead-letter batch, leaving it for redelivery", zap.Error(err))
		return queue.Redeliver(fmt.Errorf("dead-letter publish to %s: %w", r.deadLetter.Name(), err))
	}
	metrics.DeadLettered.WithLabelValues(reason).Inc()
	return nil
}

func (r *Router) unavailable(log *zap.Logger, msg queue.Message, reason string) error {
	if msg.Redelivered {
		log.Warn("log store still unavailable, batch will be redelivered", zap.String("reason", reason))
	} else {
		log.Error("log store unavailable, batch will be redelivered", zap.String("reason", reason))
	}
	return queue.Redeliver(fmt.Errorf("log store unavailable: %s", reason))
}
