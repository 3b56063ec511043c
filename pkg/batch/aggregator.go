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

package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/metrics"
)

// Trigger names the reason a batch was sealed.
type Trigger string

const (
	TriggerSize     Trigger = "size"
	TriggerTimeout  Trigger = "timeout"
	TriggerShutdown Trigger = "shutdown"
)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("aggregator is closed")

// ErrBacklog is returned by Add when a full batch whose hand-off failed is
// still held and could not be emitted again. The item was not added.
var ErrBacklog = errors.New("previous batch still awaiting hand-off")

// EmitFunc receives each sealed batch exactly once.
type EmitFunc func(ctx context.Context, payload []byte, trigger Trigger) error

// Config configures an Aggregator.
type Config struct {
	// BulkSize is the item count that seals a batch. Must be at least 1.
	BulkSize int
	// BulkTimeout is the maximum age of an open batch. Must be positive.
	BulkTimeout time.Duration
	// EmitTimeout bounds a single emission. Zero means unbounded.
	EmitTimeout time.Duration
}

// Aggregator collects items into a single open batch.
type Aggregator struct {
	cfg    Config
	emit   EmitFunc
	logger *zap.Logger

	// ctx bounds emissions started by the timer.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	items      [][]byte
	generation uint64
	timer      *time.Timer
	closed     bool
}

// New validates cfg and returns an empty aggregator.
func New(cfg Config, emit EmitFunc, logger *zap.Logger) (*Aggregator, error) {
	if cfg.BulkSize < 1 {
		return nil, fmt.Errorf("bulk size must be at least 1, got %d", cfg.BulkSize)
	}
	if cfg.BulkTimeout <= 0 {
		return nil, fmt.Errorf("bulk timeout must be positive, got %s", cfg.BulkTimeout)
	}
	if emit == nil {
		return nil, errors.New("emit function is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		cfg:    cfg,
		emit:   emit,
		logger: logger.Named("aggregator"),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Add appends item to the open batch. Reaching BulkSize seals and emits the
// batch before Add returns. The emission does not inherit ctx cancellation, so
// a batch sealed while the caller shuts down is still handed off. If the
// emission fails the items stay in the open batch and the error is returned.
func (a *Aggregator) Add(ctx context.Context, item []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	emitCtx := context.WithoutCancel(ctx)

	if len(a.items) >= a.cfg.BulkSize {
		if err := a.sealLocked(emitCtx, TriggerSize); err != nil {
			return fmt.Errorf("%w: %w", ErrBacklog, err)
		}
	}

	a.items = append(a.items, item)
	if len(a.items) == 1 {
		a.armLocked()
	}
	metrics.BatchPending.Set(float64(len(a.items)))

	if len(a.items) >= a.cfg.BulkSize {
		return a.sealLocked(emitCtx, TriggerSize)
	}
	return nil
}

func (a *Aggregator) armLocked() {
	gen := a.generation
	a.timer = time.AfterFunc(a.cfg.BulkTimeout, func() { a.expire(gen) })
}

// expire seals the batch the timer was armed for, unless it was already sealed.
func (a *Aggregator) expire(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation || len(a.items) == 0 {
		return
	}
	if err := a.sealLocked(a.ctx, TriggerTimeout); err != nil {
		a.logger.Error("failed to emit batch sealed by timeout, keeping it open", zap.Error(err))
	}
}

// sealLocked must be called with mu held and a non-empty batch. On a failed
// emission the items are put back and, unless closed, the timer is re-armed.
func (a *Aggregator) sealLocked(ctx context.Context, trigger Trigger) error {
	items := a.items
	a.items = nil
	a.generation++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}

	metrics.BatchPending.Set(0)
	metrics.BatchesSealed.WithLabelValues(string(trigger)).Inc()
	metrics.BatchSize.Observe(float64(len(items)))

	payload, err := Encode(items)
	if err != nil {
		metrics.BatchHandoffErrors.Inc()
		return err
	}

	a.logger.Debug("batch sealed",
		zap.String("trigger", string(trigger)),
		zap.Int("items", len(items)))

	if a.cfg.EmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.EmitTimeout)
		defer cancel()
	}
	if err := a.emit(ctx, payload, trigger); err != nil {
		metrics.BatchHandoffErrors.Inc()
		a.items = items
		if !a.closed {
			a.armLocked()
		}
		metrics.BatchPending.Set(float64(len(items)))
		return fmt.Errorf("failed to hand off batch of %d items: %w", len(items), err)
	}
	return nil
}

// Pending returns the number of items in the open batch.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Close seals any open batch with TriggerShutdown and rejects further items.
// It waits for an emission already in progress. If the final emission fails
// the items remain visible through Pending.
func (a *Aggregator) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.cancel()

	if a.closed {
		return nil
	}
	a.closed = true
	if len(a.items) == 0 {
		return nil
	}
	a.logger.Info("sealing open batch on shutdown", zap.Int("items", len(a.items)))
	return a.sealLocked(ctx, TriggerShutdown)
}
