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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/telekom/auditlog-forwarder/pkg/model"
)

// Encode serializes items as a JSON array of strings, preserving order.
func Encode(items [][]byte) ([]byte, error) {
	strs := make([]string, len(items))
	for i, item := range items {
		strs[i] = string(item)
	}
	payload, err := json.Marshal(strs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}
	return payload, nil
}

// Decode parses a batch payload. A single undecodable element fails the whole
// batch, as does a JSON null in place of the array.
func Decode(payload []byte) ([]model.LogEvent, error) {
	var strs []string
	if err := json.Unmarshal(payload, &strs); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	if strs == nil {
		return nil, errors.New("failed to decode batch: payload is not an array")
	}
	events := make([]model.LogEvent, 0, len(strs))
	for i, s := range strs {
		event, err := model.Decode([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("batch element %d: %w", i, err)
		}
		events = append(events, event)
	}
	return events, nil
}
