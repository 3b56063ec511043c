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
	"fmt"
	"time"
)

// Message is one unit of delivery handed to a Handler.
type Message struct {
	Key     []byte
	Payload []byte

	// Redelivered is set on every delivery after the first.
	Redelivered bool
	// DeliveryCount starts at 1.
	DeliveryCount int
}

// Handler processes a message. Returning nil acknowledges it; returning an
// error wrapped with Redeliver asks the transport to present it again; any
// other error discards it.
type Handler func(ctx context.Context, msg Message) error

// Publisher writes payloads to a destination.
type Publisher interface {
	Publish(ctx context.Context, payloads ...[]byte) error
	Close() error
	Name() string
}

// Consumer reads a destination until its context ends.
type Consumer interface {
	Consume(ctx context.Context, h Handler) error
	Close() error
}

// ConsumerOptions controls how unsettled messages are redelivered.
type ConsumerOptions struct {
	Redelivery RetryPolicy
	// Exhausted receives payloads whose redelivery budget is used up. When nil
	// such messages are dropped after logging.
	Exhausted Publisher
}

// Transport opens publishers and consumers for named destinations.
type Transport interface {
	Publisher(destination string) (Publisher, error)
	Consumer(destination string, opts ConsumerOptions) (Consumer, error)
	Close() error
}

// RetryPolicy is an exponential backoff schedule.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy mirrors a broker redelivery policy of six attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        6,
		InitialDelay:      time.Second,
		MaxDelay:          time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// Next returns the delay following current.
func (p RetryPolicy) Next(current time.Duration) time.Duration {
	mult := p.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	next := time.Duration(float64(current) * mult)
	if p.MaxDelay > 0 && next > p.MaxDelay {
		next = p.MaxDelay
	}
	return next
}

// RedeliveryError marks a handler failure as transient.
type RedeliveryError struct {
	Err error
}

func (e *RedeliveryError) Error() string {
	return fmt.Sprintf("redelivery requested: %v", e.Err)
}

func (e *RedeliveryError) Unwrap() error {
	return e.Err
}

// Redeliver wraps err so the transport presents the message again.
func Redeliver(err error) error {
	if err == nil {
		return nil
	}
	return &RedeliveryError{Err: err}
}

// IsRedeliverable reports whether err asks for redelivery.
func IsRedeliverable(err error) bool {
	var re *RedeliveryError
	return errors.As(err, &re)
}

// ErrClosed is returned by publishers and consumers used after Close.
var ErrClosed = errors.New("queue is closed")
