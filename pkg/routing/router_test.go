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

package routing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/telekom/auditlog-forwarder/pkg/dispatch"
	"github.com/telekom/auditlog-forwarder/pkg/queue"
)

type stubDispatcher struct {
	result dispatch.Result
	err    error
}

func (s stubDispatcher) Dispatch(context.Context, []byte) (dispatch.Result, error) {
	return s.result, s.err
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, ...[]byte) error { return errors.New("dlq down") }
func (failingPublisher) Close() error                             { return nil }
func (failingPublisher) Name() string                             { return "dlq" }

func newRouter(d Dispatcher) (*Router, *queue.MemoryQueue, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	dlq := queue.NewMemoryTransport(16, zap.NewNop()).Queue("dlq")
	return New(d, dlq, zap.New(core)), dlq, logs
}

var payload = []byte(`["{\"logId\":\"a\"}"]`)

func TestRouter_AcceptedAcks(t *testing.T) {
	r, dlq, _ := newRouter(stubDispatcher{result: dispatch.Result{Outcome: dispatch.Accepted}})

	require.NoError(t, r.Handle(context.Background(), queue.Message{Payload: payload}))
	assert.Zero(t, dlq.PublishedCount())
}

func TestRouter_RejectedGoesToDeadLetterVerbatim(t *testing.T) {
	r, dlq, logs := newRouter(stubDispatcher{result: dispatch.Result{Outcome: dispatch.Rejected, Reason: "bad"}})

	require.NoError(t, r.Handle(context.Background(), queue.Message{Payload: payload}))
	require.Equal(t, int64(1), dlq.PublishedCount())
	assert.Equal(t, payload, dlq.Published()[0])

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bad", entries[0].ContextMap()["detail"])
}

func TestRouter_InvalidBatchGoesToDeadLetter(t *testing.T) {
	err := fmt.Errorf("%w: broken", dispatch.ErrInvalidBatch)
	r, dlq, _ := newRouter(stubDispatcher{err: err})

	require.NoError(t, r.Handle(context.Background(), queue.Message{Payload: payload}))
	assert.Equal(t, int64(1), dlq.PublishedCount())
}

func TestRouter_UnavailableIsRedelivered(t *testing.T) {
	r, dlq, logs := newRouter(stubDispatcher{result: dispatch.Result{Outcome: dispatch.Unavailable, Reason: "timeout"}})

	err := r.Handle(context.Background(), queue.Message{Payload: payload})
	require.Error(t, err)
	assert.True(t, queue.IsRedeliverable(err))
	assert.Zero(t, dlq.PublishedCount())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())

	err = r.Handle(context.Background(), queue.Message{Payload: payload, Redelivered: true, DeliveryCount: 2})
	assert.True(t, queue.IsRedeliverable(err))
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestRouter_DeadLetterFailureIsRedelivered(t *testing.T) {
	r := New(stubDispatcher{result: dispatch.Result{Outcome: dispatch.Rejected}}, failingPublisher{}, zap.NewNop())

	err := r.Handle(context.Background(), queue.Message{Payload: payload})
	require.Error(t, err)
	assert.True(t, queue.IsRedeliverable(err))
}
