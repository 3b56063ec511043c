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

// Package pipeline runs the forwarder: an ingest loop that splits inbound
// events and aggregates them into batches, and dispatch loops that send
// batches to the log store and route the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/telekom/auditlog-forwarder/pkg/batch"
	"github.com/telekom/auditlog-forwarder/pkg/config"
	"github.com/telekom/auditlog-forwarder/pkg/dispatch"
	"github.com/telekom/auditlog-forwarder/pkg/metrics"
	"github.com/telekom/auditlog-forwarder/pkg/queue"
	"github.com/telekom/auditlog-forwarder/pkg/routing"
	"github.com/telekom/auditlog-forwarder/pkg/split"
)

// ShutdownTimeout bounds the hand-off of the last open batch on stop.
const ShutdownTimeout = 10 * time.Second

// Pipeline owns the aggregator and the consumer loops.
type Pipeline struct {
	cfg    config.Config
	comps  Components
	logger *zap.Logger

	splitter   *split.Splitter
	aggregator *batch.Aggregator
	router     *routing.Router
	batchPub   queue.Publisher

	handoff    queue.RetryPolicy
	redelivery queue.RetryPolicy

	running   atomic.Bool
	closeOnce sync.Once
}

// New assembles a pipeline. cfg is expected to be validated.
func New(cfg config.Config, comps Components, logger *zap.Logger) (*Pipeline, error) {
	logger = logger.Named("pipeline")

	batchPub, err := comps.Transport.Publisher(cfg.Queues.Batch)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch destination %s: %w", cfg.Queues.Batch, err)
	}

	p := &Pipeline{
		cfg:        cfg,
		comps:      comps,
		logger:     logger,
		splitter:   split.New(logger),
		batchPub:   batchPub,
		handoff:    retryPolicy(cfg.Pipeline.Handoff),
		redelivery: retryPolicy(cfg.Queues.Redelivery),
	}
	p.router = routing.New(dispatch.New(comps.Store, cfg.Pipeline.LogicalAddress, logger), comps.DeadLetter, logger)

	p.aggregator, err = batch.New(batch.Config{
		BulkSize:    cfg.Pipeline.BulkSize,
		BulkTimeout: cfg.Pipeline.BulkTimeout.Std(),
		EmitTimeout: ShutdownTimeout,
	}, p.handOff, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) handOff(ctx context.Context, payload []byte, trigger batch.Trigger) error {
	return queue.PublishWithRetry(ctx, p.batchPub, p.handoff, payload, p.logger.With(zap.String("trigger", string(trigger))))
}

// ingest handles one inbound event message.
func (p *Pipeline) ingest(ctx context.Context, msg queue.Message) error {
	metrics.EventsReceived.Inc()

	items, err := p.splitter.Split(msg.Payload)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := p.aggregator.Add(ctx, item); err != nil {
			if errors.Is(err, batch.ErrClosed) || errors.Is(err, batch.ErrBacklog) {
				return queue.Redeliver(err)
			}
			// The item is held in the open batch, which the aggregator
			// retries on its timer and seals again on Close.
			p.logger.Warn("batch hand-off failed, batch kept open", zap.Error(err))
		}
	}
	return nil
}

// Run consumes until ctx ends, then seals the open batch.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.supervise(gctx, p.cfg.Queues.Inbound, queue.ConsumerOptions{Redelivery: p.redelivery}, p.ingest)
	})
	for i := 0; i < p.cfg.Pipeline.DispatchConcurrency; i++ {
		g.Go(func() error {
			return p.supervise(gctx, p.cfg.Queues.Batch, queue.ConsumerOptions{
				Redelivery: p.redelivery,
				Exhausted:  p.comps.DeadLetter,
			}, p.router.Handle)
		})
	}

	p.running.Store(true)
	p.logger.Info("pipeline started",
		zap.String("inbound", p.cfg.Queues.Inbound),
		zap.String("batch", p.cfg.Queues.Batch),
		zap.String("dead_letter", p.comps.DeadLetter.Name()),
		zap.Int("bulk_size", p.cfg.Pipeline.BulkSize),
		zap.Duration("bulk_timeout", p.cfg.Pipeline.BulkTimeout.Std()),
		zap.Int("dispatch_concurrency", p.cfg.Pipeline.DispatchConcurrency))

	err := g.Wait()
	p.running.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if cerr := p.aggregator.Close(shutdownCtx); cerr != nil {
		p.logger.Error("failed to hand off final batch", zap.Error(cerr))
	}
	p.logger.Info("pipeline stopped")
	return err
}

// supervise keeps a consumer running on destination, reopening it after a
// failure so unsettled messages are fetched again.
func (p *Pipeline) supervise(ctx context.Context, destination string, opts queue.ConsumerOptions, h queue.Handler) error {
	delay := p.redelivery.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	for {
		consumer, err := p.comps.Transport.Consumer(destination, opts)
		if err != nil {
			return fmt.Errorf("failed to open consumer on %s: %w", destination, err)
		}
		err = consumer.Consume(ctx, h)
		_ = consumer.Close()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, queue.ErrClosed) {
			return nil
		}

		p.logger.Error("consumer stopped, restarting",
			zap.String("destination", destination),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = p.redelivery.Next(delay)
	}
}

// Ready reports whether the consumer loops are running.
func (p *Pipeline) Ready() bool {
	return p.running.Load()
}

// Pending returns the number of items in the open batch.
func (p *Pipeline) Pending() int {
	return p.aggregator.Pending()
}

// Components returns the collaborators the pipeline was built with.
func (p *Pipeline) Components() Components {
	return p.comps
}

// Close releases the batch publisher and the components. Call it after Run returns.
func (p *Pipeline) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if cerr := p.batchPub.Close(); cerr != nil {
			err = cerr
		}
		if cerr := p.comps.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
