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
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type emitted struct {
	items   []string
	trigger Trigger
	at      time.Time
}

type recorder struct {
	mu      sync.Mutex
	batches []emitted
	// fail is the number of emissions to reject after recording them.
	fail int
}

func (r *recorder) emit(ctx context.Context, payload []byte, trigger Trigger) error {
	var items []string
	if err := json.Unmarshal(payload, &items); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	r.batches = append(r.batches, emitted{items: items, trigger: trigger, at: time.Now()})
	if r.fail > 0 {
		r.fail--
		return errors.New("queue down")
	}
	return nil
}

func (r *recorder) snapshot() []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]emitted, len(r.batches))
	copy(out, r.batches)
	return out
}

func item(i int) []byte {
	return []byte(fmt.Sprintf(`{"logId":"%d"}`, i))
}

func TestNew_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	r := &recorder{}

	_, err := New(Config{BulkSize: 0, BulkTimeout: time.Second}, r.emit, logger)
	assert.Error(t, err)
	_, err = New(Config{BulkSize: 1, BulkTimeout: 0}, r.emit, logger)
	assert.Error(t, err)
	_, err = New(Config{BulkSize: 1, BulkTimeout: time.Second}, nil, logger)
	assert.Error(t, err)
}

func TestAggregator_SealsBySize(t *testing.T) {
	r := &recorder{}
	a, err := New(Config{BulkSize: 5, BulkTimeout: time.Hour}, r.emit, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.cancel()

	for i := 0; i < 12; i++ {
		require.NoError(t, a.Add(context.Background(), item(i)))
	}

	batches := r.snapshot()
	require.Len(t, batches, 2)
	for b, batch := range batches {
		assert.Equal(t, TriggerSize, batch.trigger)
		require.Len(t, batch.items, 5)
		for i, got := range batch.items {
			assert.Equal(t, string(item(b*5+i)), got)
		}
	}
	assert.Equal(t, 2, a.Pending())
}

func TestAggregator_SealsByTimeout(t *testing.T) {
	r := &recorder{}
	timeout := 50 * time.Millisecond
	a, err := New(Config{BulkSize: 100, BulkTimeout: timeout}, r.emit, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.cancel()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, a.Add(context.Background(), item(i)))
	}

	assert.Eventually(t, func() bool { return len(r.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	batch := r.snapshot()[0]
	assert.Equal(t, TriggerTimeout, batch.trigger)
	assert.Len(t, batch.items, 3)
	assert.GreaterOrEqual(t, batch.at.Sub(start), timeout)
	assert.Zero(t, a.Pending())
}

func TestAggregator_SizeSealStopsTimer(t *testing.T) {
	r := &recorder{}
	a, err := New(Config{BulkSize: 2, BulkTimeout: 20 * time.Millisecond}, r.emit, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.cancel()

	require.NoError(t, a.Add(context.Background(), item(1)))
	require.NoError(t, a.Add(context.Background(), item(2)))
	time.Sleep(80 * time.Millisecond)

	batches := r.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, TriggerSize, batches[0].trigger)
}

func TestAggregator_NoEmptyBatches(t *testing.T) {
	r := &recorder{}
	a, err := New(Config{BulkSize: 3, BulkTimeout: 10 * time.Millisecond}, r.emit, zaptest.NewLogger(t))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, a.Close(context.Background()))
	assert.Empty(t, r.snapshot())
}

func TestAggregator_CloseSealsPending(t *testing.T) {
	r := &recorder{}
	a, err := New(Config{BulkSize: 10, BulkTimeout: time.Hour}, r.emit, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, a.Add(context.Background(), item(1)))
	require.NoError(t, a.Add(context.Background(), item(2)))
	require.NoError(t, a.Close(context.Background()))

	batches := r.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, TriggerShutdown, batches[0].trigger)
	assert.Len(t, batches[0].items, 2)

	assert.ErrorIs(t, a.Add(context.Background(), item(3)), ErrClosed)
	assert.NoError(t, a.Close(context.Background()))
	assert.Len(t, r.snapshot(), 1)
}

func TestAggregator_EmitErrorKeepsBatchOpen(t *testing.T) {
	r := &recorder{fail: 1}
	a, err := New(Config{BulkSize: 2, BulkTimeout: time.Hour}, r.emit, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.cancel()

	require.NoError(t, a.Add(context.Background(), item(1)))
	err = a.Add(context.Background(), item(2))
	assert.ErrorContains(t, err, "queue down")
	assert.Equal(t, 2, a.Pending())

	// The held batch is emitted again before the next item is taken.
	require.NoError(t, a.Add(context.Background(), item(3)))
	batches := r.snapshot()
	require.Len(t, batches, 2)
	assert.Equal(t, batches[0].items, batches[1].items)
	assert.Equal(t, 1, a.Pending())
}

func TestAggregator_BacklogRejectsItem(t *testing.T) {
	r := &recorder{fail: 2}
	a, err := New(Config{BulkSize: 1, BulkTimeout: time.Hour}, r.emit, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.cancel()

	require.Error(t, a.Add(context.Background(), item(1)))
	assert.ErrorIs(t, a.Add(context.Background(), item(2)), ErrBacklog)
	assert.Equal(t, 1, a.Pending())

	require.NoError(t, a.Close(context.Background()))
	batches := r.snapshot()
	require.Len(t, batches, 3)
	assert.Equal(t, TriggerShutdown, batches[2].trigger)
	assert.Equal(t, []string{string(item(1))}, batches[2].items)
}

func TestAggregator_SizeSealIgnoresCancelledContext(t *testing.T) {
	r := &recorder{}
	a, err := New(Config{BulkSize: 2, BulkTimeout: time.Hour}, r.emit, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.cancel()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Add(ctx, item(1)))
	cancel()
	require.NoError(t, a.Add(ctx, item(2)))

	batches := r.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].items, 2)
	assert.Zero(t, a.Pending())
}

func TestAggregator_TimeoutRetriesFailedEmit(t *testing.T) {
	r := &recorder{fail: 1}
	a, err := New(Config{BulkSize: 10, BulkTimeout: 20 * time.Millisecond}, r.emit, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.cancel()

	require.NoError(t, a.Add(context.Background(), item(1)))
	assert.Eventually(t, func() bool { return len(r.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return a.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestAggregator_ConcurrentAddsEmitEveryItemOnce(t *testing.T) {
	r := &recorder{}
	a, err := New(Config{BulkSize: 7, BulkTimeout: 5 * time.Millisecond}, r.emit, zaptest.NewLogger(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, a.Add(context.Background(), item(g*1000+i)))
				if i%10 == 0 {
					time.Sleep(time.Millisecond)
				}
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, a.Close(context.Background()))

	seen := map[string]int{}
	for _, b := range r.snapshot() {
		assert.NotEmpty(t, b.items)
		assert.LessOrEqual(t, len(b.items), 7)
		for _, it := range b.items {
			seen[it]++
		}
	}
	assert.Len(t, seen, 1000)
	for it, n := range seen {
		assert.Equal(t, 1, n, "item %s emitted %d times", it, n)
	}
}
