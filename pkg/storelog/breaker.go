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

package storelog

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/metrics"
)

// BreakerState is the state of a store circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures BreakerStore.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive transport failures that opens the circuit.
	// Default: 5
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open successes that closes it again.
	// Default: 2
	SuccessThreshold int
	// OpenTimeout is how long the circuit stays open before a probe is let through.
	// Default: 30s
	OpenTimeout time.Duration
}

// ErrCircuitOpen is returned without calling the store while the circuit is open.
var ErrCircuitOpen = errors.New("store circuit breaker is open")

// BreakerStatus is a snapshot of the breaker counters.
type BreakerStatus struct {
	State            BreakerState
	ConsecutiveFails int
	Calls            int64
	Failures         int64
	Rejections       int64
	LastError        error
	LastStateChange  time.Time
}

// BreakerStore stops calling a store that keeps failing at the transport
// level. Result codes such as VALIDATION_ERROR count as completed calls.
type BreakerStore struct {
	name   string
	store  Store
	cfg    BreakerConfig
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         BreakerState
	fails         int
	successes     int
	probeInFlight bool
	changedAt     time.Time
	calls         int64
	failures      int64
	rejections    int64
	lastErr       error
}

// NewBreakerStore wraps store. name labels the breaker's metrics.
func NewBreakerStore(name string, store Store, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	b := &BreakerStore{
		name:      name,
		store:     store,
		cfg:       cfg,
		logger:    logger.Named("circuit-breaker").With(zap.String("store", name)),
		now:       time.Now,
		changedAt: time.Now(),
	}
	metrics.StoreCircuitState.WithLabelValues(name).Set(float64(BreakerClosed))
	b.logger.Info("store circuit breaker created",
		zap.Int("failure_threshold", cfg.FailureThreshold),
		zap.Int("success_threshold", cfg.SuccessThreshold),
		zap.Duration("open_timeout", cfg.OpenTimeout))
	return b
}

// StoreLog forwards to the wrapped store unless the circuit is open.
func (b *BreakerStore) StoreLog(ctx context.Context, logicalAddress string, logs []Log) (Result, error) {
	if !b.admit() {
		metrics.StoreCircuitRejections.WithLabelValues(b.name).Inc()
		return Result{}, ErrCircuitOpen
	}

	result, err := b.store.StoreLog(ctx, logicalAddress, logs)
	b.record(err)
	return result, err
}

func (b *BreakerStore) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.calls++
		return true
	case BreakerOpen:
		if b.now().Sub(b.changedAt) < b.cfg.OpenTimeout {
			b.rejections++
			return false
		}
		b.transition(BreakerHalfOpen)
		fallthrough
	case BreakerHalfOpen:
		// One probe at a time.
		if b.probeInFlight {
			b.rejections++
			return false
		}
		b.probeInFlight = true
		b.calls++
		return true
	}
	return false
}

func (b *BreakerStore) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.probeInFlight = false
	}
	if err != nil {
		b.failures++
		b.lastErr = err
		b.successes = 0
		b.fails++
		if b.state == BreakerHalfOpen || (b.state == BreakerClosed && b.fails >= b.cfg.FailureThreshold) {
			b.transition(BreakerOpen)
		}
		return
	}

	b.fails = 0
	if b.state == BreakerHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(BreakerClosed)
		}
	}
}

// transition must be called with mu held.
func (b *BreakerStore) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.changedAt = b.now()
	b.fails = 0
	b.successes = 0
	b.probeInFlight = false

	metrics.StoreCircuitState.WithLabelValues(b.name).Set(float64(to))
	if to == BreakerOpen {
		b.logger.Warn("store circuit breaker opened",
			zap.String("from", from.String()),
			zap.Error(b.lastErr))
		return
	}
	b.logger.Info("store circuit breaker state changed",
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}

// State returns the current state.
func (b *BreakerStore) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status returns a snapshot of the breaker.
func (b *BreakerStore) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStatus{
		State:            b.state,
		ConsecutiveFails: b.fails,
		Calls:            b.calls,
		Failures:         b.failures,
		Rejections:       b.rejections,
		LastError:        b.lastErr,
		LastStateChange:  b.changedAt,
	}
}

// Healthy reports whether the circuit is closed.
func (b *BreakerStore) Healthy() bool {
	return b.State() == BreakerClosed
}
