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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        maxRetries,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

// failingPublisher always fails.
type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, ...[]byte) error { return errors.New("publish down") }
func (failingPublisher) Close() error                             { return nil }
func (failingPublisher) Name() string                             { return "failing" }

func TestDeliver_AckOnSuccess(t *testing.T) {
	calls := 0
	err := deliver(context.Background(), "q", Message{Payload: []byte("x")}, func(_ context.Context, msg Message) error {
		calls++
		assert.False(t, msg.Redelivered)
		assert.Equal(t, 1, msg.DeliveryCount)
		return nil
	}, ConsumerOptions{Redelivery: fastPolicy(3)}, zaptest.NewLogger(t))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDeliver_NonRetryableErrorIsDiscarded(t *testing.T) {
	dlq := NewMemoryTransport(0, zaptest.NewLogger(t)).Queue("dlq")
	calls := 0
	err := deliver(context.Background(), "q", Message{Payload: []byte("x")}, func(context.Context, Message) error {
		calls++
		return errors.New("garbage")
	}, ConsumerOptions{Redelivery: fastPolicy(3), Exhausted: dlq}, zaptest.NewLogger(t))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, dlq.PublishedCount())
}

func TestDeliver_RedeliversUntilSuccess(t *testing.T) {
	var seen []Message
	err := deliver(context.Background(), "q", Message{Payload: []byte("x")}, func(_ context.Context, msg Message) error {
		seen = append(seen, msg)
		if len(seen) < 3 {
			return Redeliver(errors.New("store unavailable"))
		}
		return nil
	}, ConsumerOptions{Redelivery: fastPolicy(5)}, zaptest.NewLogger(t))

	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.False(t, seen[0].Redelivered)
	assert.True(t, seen[1].Redelivered)
	assert.True(t, seen[2].Redelivered)
	assert.Equal(t, 3, seen[2].DeliveryCount)
}

func TestDeliver_ExhaustedMovesPayload(t *testing.T) {
	dlq := NewMemoryTransport(0, zaptest.NewLogger(t)).Queue("dlq")
	calls := 0
	err := deliver(context.Background(), "q", Message{Payload: []byte("batch")}, func(context.Context, Message) error {
		calls++
		return Redeliver(errors.New("down"))
	}, ConsumerOptions{Redelivery: fastPolicy(2), Exhausted: dlq}, zaptest.NewLogger(t))

	require.NoError(t, err)
	assert.Equal(t, 3, calls, "first delivery plus two redeliveries")
	assert.Equal(t, [][]byte{[]byte("batch")}, dlq.Published())
}

func TestDeliver_ExhaustedWithoutDestinationDrops(t *testing.T) {
	err := deliver(context.Background(), "q", Message{}, func(context.Context, Message) error {
		return Redeliver(errors.New("down"))
	}, ConsumerOptions{Redelivery: fastPolicy(0)}, zaptest.NewLogger(t))
	assert.NoError(t, err)
}

func TestDeliver_ExhaustedPublishFailureLeavesUnsettled(t *testing.T) {
	err := deliver(context.Background(), "q", Message{}, func(context.Context, Message) error {
		return Redeliver(errors.New("down"))
	}, ConsumerOptions{Redelivery: fastPolicy(0), Exhausted: failingPublisher{}}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrUnsettled)
}

func TestDeliver_CancelledDuringBackoffLeavesUnsettled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour, BackoffMultiplier: 1}

	var once sync.Once
	err := deliver(ctx, "q", Message{}, func(context.Context, Message) error {
		once.Do(cancel)
		return Redeliver(errors.New("down"))
	}, ConsumerOptions{Redelivery: policy}, zaptest.NewLogger(t))

	assert.ErrorIs(t, err, ErrUnsettled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_Next(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 2}
	assert.Equal(t, 2*time.Second, p.Next(time.Second))
	assert.Equal(t, 5*time.Second, p.Next(4*time.Second))

	flat := RetryPolicy{BackoffMultiplier: 0}
	assert.Equal(t, time.Second, flat.Next(time.Second))
}

func TestRedeliver(t *testing.T) {
	assert.Nil(t, Redeliver(nil))

	base := errors.New("boom")
	err := Redeliver(base)
	assert.True(t, IsRedeliverable(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsRedeliverable(base))
}

// flakyPublisher fails a fixed number of times before succeeding.
type flakyPublisher struct {
	failures int
	calls    int
}

func (p *flakyPublisher) Publish(context.Context, ...[]byte) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("not yet")
	}
	return nil
}
func (p *flakyPublisher) Close() error { return nil }
func (p *flakyPublisher) Name() string { return "flaky" }

func TestPublishWithRetry(t *testing.T) {
	logger := zaptest.NewLogger(t)

	p := &flakyPublisher{failures: 2}
	require.NoError(t, PublishWithRetry(context.Background(), p, fastPolicy(3), []byte("x"), logger))
	assert.Equal(t, 3, p.calls)

	p = &flakyPublisher{failures: 10}
	err := PublishWithRetry(context.Background(), p, fastPolicy(2), []byte("x"), logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, p.calls)
}
