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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBreakerStore_OpensAfterFailureThreshold(t *testing.T) {
	inner := NewMemoryStore()
	inner.SetFault(FaultUnavailable)
	b := NewBreakerStore("test", inner, BreakerConfig{FailureThreshold: 3, OpenTimeout: time.Minute}, zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		_, err := b.StoreLog(context.Background(), "addr", []Log{sampleLog()})
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	}
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Healthy())

	_, err := b.StoreLog(context.Background(), "addr", []Log{sampleLog()})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, inner.Calls())
	assert.Equal(t, int64(1), b.Status().Rejections)
}

func TestBreakerStore_ResultCodesDoNotTrip(t *testing.T) {
	inner := NewMemoryStore()
	inner.SetFault(FaultValidation)
	b := NewBreakerStore("test", inner, BreakerConfig{FailureThreshold: 2}, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		res, err := b.StoreLog(context.Background(), "addr", []Log{sampleLog()})
		require.NoError(t, err)
		assert.Equal(t, ResultValidationError, res.ResultCode)
	}
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerStore_HalfOpenRecovery(t *testing.T) {
	inner := NewMemoryStore()
	inner.SetFault(FaultUnavailable)
	b := NewBreakerStore("test", inner, BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: time.Minute}, zaptest.NewLogger(t))

	now := time.Now()
	b.now = func() time.Time { return now }

	_, _ = b.StoreLog(context.Background(), "addr", []Log{sampleLog()})
	require.Equal(t, BreakerOpen, b.State())

	now = now.Add(2 * time.Minute)
	inner.SetFault(FaultNone)

	_, err := b.StoreLog(context.Background(), "addr", []Log{sampleLog()})
	require.NoError(t, err)
	assert.Equal(t, BreakerHalfOpen, b.State())

	_, err = b.StoreLog(context.Background(), "addr", []Log{sampleLog()})
	require.NoError(t, err)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerStore_HalfOpenFailureReopens(t *testing.T) {
	inner := NewMemoryStore()
	inner.SetFault(FaultUnavailable)
	b := NewBreakerStore("test", inner, BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute}, zaptest.NewLogger(t))

	now := time.Now()
	b.now = func() time.Time { return now }

	_, _ = b.StoreLog(context.Background(), "addr", []Log{sampleLog()})
	now = now.Add(2 * time.Minute)

	_, err := b.StoreLog(context.Background(), "addr", []Log{sampleLog()})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, BreakerOpen, b.State())
	assert.Equal(t, 2, inner.Calls())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
