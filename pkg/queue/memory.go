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
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultMemoryCapacity is the buffer size of each in-memory destination.
const DefaultMemoryCapacity = 1024

// MemoryTransport is an in-process Transport. Every destination is a buffered
// channel shared by all of its consumers, so competing consumers split the
// load the way a broker queue would.
type MemoryTransport struct {
	capacity int
	logger   *zap.Logger

	mu     sync.Mutex
	queues map[string]*MemoryQueue
	closed bool
}

// NewMemoryTransport creates an empty in-memory transport. A capacity <= 0
// selects DefaultMemoryCapacity.
func NewMemoryTransport(capacity int, logger *zap.Logger) *MemoryTransport {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryTransport{
		capacity: capacity,
		logger:   logger.Named("memory-queue"),
		queues:   make(map[string]*MemoryQueue),
	}
}

// Queue returns the named destination, creating it on first use.
func (t *MemoryTransport) Queue(name string) *MemoryQueue {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queues[name]
	if !ok {
		q = &MemoryQueue{name: name, ch: make(chan Message, t.capacity)}
		t.queues[name] = q
	}
	return q
}

// Publisher implements Transport.
func (t *MemoryTransport) Publisher(destination string) (Publisher, error) {
	if err := t.check(destination); err != nil {
		return nil, err
	}
	return t.Queue(destination), nil
}

// Consumer implements Transport.
func (t *MemoryTransport) Consumer(destination string, opts ConsumerOptions) (Consumer, error) {
	if err := t.check(destination); err != nil {
		return nil, err
	}
	return &memoryConsumer{
		queue:  t.Queue(destination),
		opts:   opts,
		logger: t.logger.With(zap.String("destination", destination)),
	}, nil
}

func (t *MemoryTransport) check(destination string) error {
	if destination == "" {
		return fmt.Errorf("destination name is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the transport closed. Queued messages are kept for inspection.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// MemoryQueue is a single in-memory destination.
type MemoryQueue struct {
	name string
	ch   chan Message

	mu        sync.Mutex
	published [][]byte
	count     atomic.Int64
}

// Publish enqueues payloads, blocking while the buffer is full.
func (q *MemoryQueue) Publish(ctx context.Context, payloads ...[]byte) error {
	for _, p := range payloads {
		msg := Message{Payload: append([]byte(nil), p...)}
		select {
		case q.ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
		q.mu.Lock()
		q.published = append(q.published, msg.Payload)
		q.mu.Unlock()
		q.count.Add(1)
	}
	return nil
}

// Close is a no-op; the owning transport controls the lifecycle.
func (q *MemoryQueue) Close() error {
	return nil
}

// Name returns the destination name.
func (q *MemoryQueue) Name() string {
	return q.name
}

// Depth is the number of messages waiting to be consumed.
func (q *MemoryQueue) Depth() int {
	return len(q.ch)
}

// PublishedCount is the number of payloads ever published.
func (q *MemoryQueue) PublishedCount() int64 {
	return q.count.Load()
}

// Published returns a copy of every payload ever published, in order.
func (q *MemoryQueue) Published() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]byte, len(q.published))
	copy(out, q.published)
	return out
}

type memoryConsumer struct {
	queue  *MemoryQueue
	opts   ConsumerOptions
	logger *zap.Logger
	closed atomic.Bool
}

// Consume delivers messages until ctx ends. An unsettled message is put back
// at the tail of the queue so another consumer or a later run picks it up.
func (c *memoryConsumer) Consume(ctx context.Context, h Handler) error {
	for {
		if c.closed.Load() {
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.queue.ch:
			if err := deliver(ctx, c.queue.name, msg, h, c.opts, c.logger); err != nil {
				select {
				case c.queue.ch <- Message{Key: msg.Key, Payload: msg.Payload}:
				default:
					c.logger.Error("queue full, unsettled message lost", zap.Error(err))
				}
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (c *memoryConsumer) Close() error {
	c.closed.Store(true)
	return nil
}
