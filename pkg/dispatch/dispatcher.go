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

// Package dispatch sends sealed batches to the log store and classifies the answer.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/batch"
	"github.com/telekom/auditlog-forwarder/pkg/metrics"
	"github.com/telekom/auditlog-forwarder/pkg/storelog"
	"github.com/telekom/auditlog-forwarder/pkg/system"
)

// Dispatcher makes exactly one store call per batch and never retries.
type Dispatcher struct {
	store          storelog.Store
	logicalAddress string
	logger         *zap.Logger
}

// New creates a new Dispatcher storing under logicalAddress.
func New(store storelog.Store, logicalAddress string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:          store,
		logicalAddress: logicalAddress,
		logger:         logger.Named("dispatcher"),
	}
}

// Dispatch decodes payload, converts it and stores it. Decode and conversion
// failures are returned as errors wrapping ErrInvalidBatch; every store
// answer, including transport failures, is reported through the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte) (Result, error) {
	log := system.NewCorrelation().Logger(d.logger)

	events, err := batch.Decode(payload)
	if err != nil {
		metrics.BatchesDispatched.WithLabelValues("invalid").Inc()
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	logs, err := Convert(events)
	if err != nil {
		metrics.BatchesDispatched.WithLabelValues("invalid").Inc()
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}

	if len(logs) == 0 {
		log.Info("empty batch, nothing to store")
		metrics.BatchesDispatched.WithLabelValues(Accepted.String()).Inc()
		return Result{Outcome: Accepted, Reason: "empty batch, no store call made"}, nil
	}

	start := time.Now()
	storeResult, err := d.store.StoreLog(ctx, d.logicalAddress, logs)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	result := classify(storeResult, err)
	result.Logs = len(logs)
	metrics.BatchesDispatched.WithLabelValues(result.Outcome.String()).Inc()

	fields := []zap.Field{
		zap.Int("logs", len(logs)),
		zap.String("outcome", result.Outcome.String()),
		zap.String("result_code", string(storeResult.ResultCode)),
	}
	switch {
	case err != nil:
		log.Debug("store call failed", append(fields, zap.Error(err))...)
	case storeResult.ResultCode == storelog.ResultInfo:
		log.Warn("store answered INFO, treating batch as stored", append(fields, zap.String("reason", result.Reason))...)
	default:
		log.Debug("batch dispatched", fields...)
	}
	return result, nil
}

func classify(r storelog.Result, err error) Result {
	if err != nil {
		return Result{Outcome: Unavailable, Reason: err.Error()}
	}
	switch r.ResultCode {
	case storelog.ResultOK, storelog.ResultInfo:
		return Result{Outcome: Accepted, Reason: r.ResultText}
	case storelog.ResultError, storelog.ResultValidationError:
		return Result{Outcome: Rejected, Reason: r.ResultText}
	default:
		return Result{Outcome: Unavailable, Reason: fmt.Sprintf("unrecognized result code %q: %s", r.ResultCode, r.ResultText)}
	}
}
