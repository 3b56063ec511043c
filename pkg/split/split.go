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

// Package split turns a multi-resource audit event into one event per resource.
package split

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/auditlog-forwarder/pkg/metrics"
	"github.com/telekom/auditlog-forwarder/pkg/model"
	"github.com/telekom/auditlog-forwarder/pkg/system"
)

// ErrMalformedEvent is returned for payloads that do not decode as a log event.
var ErrMalformedEvent = errors.New("malformed log event")

// ErrNoResources is returned for events without resources. Such events are
// discarded, never dead-lettered.
var ErrNoResources = model.ErrNoResources

// Splitter is stateless and safe for concurrent use.
type Splitter struct {
	logger *zap.Logger
}

// New creates a new Splitter.
func New(logger *zap.Logger) *Splitter {
	return &Splitter{logger: logger.Named("splitter")}
}

// Split returns one payload per resource in payload, in resource order. A
// single-resource payload is returned unchanged. Both errors are permanent.
func (s *Splitter) Split(payload []byte) ([][]byte, error) {
	log := system.NewCorrelation().Logger(s.logger)

	event, err := model.Decode(payload)
	if err != nil {
		log.Warn("discarding malformed log event", zap.Error(err))
		metrics.EventsDiscarded.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch len(event.Resources) {
	case 0:
		log.Warn("discarding log event without resources",
			zap.String("log_id", event.ID),
			zap.String("system_id", event.SystemID))
		metrics.EventsDiscarded.WithLabelValues("no_resources").Inc()
		return nil, ErrNoResources
	case 1:
		metrics.EventsSplit.Inc()
		return [][]byte{payload}, nil
	}

	out := make([][]byte, 0, len(event.Resources))
	for _, r := range event.Resources {
		encoded, err := model.Encode(event.WithResource(r))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out = append(out, encoded)
	}
	metrics.EventsSplit.Add(float64(len(out)))

	log.Debug("split log event",
		zap.String("log_id", event.ID),
		zap.Int("resources", len(out)))
	return out, nil
}
