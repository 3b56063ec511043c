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

package dispatch

import "errors"

// Outcome classifies a dispatched batch.
type Outcome int

const (
	// Accepted batches are done, possibly with an informational note.
	Accepted Outcome = iota
	// Rejected batches have content the store refused. They are not retried.
	Rejected
	// Unavailable batches could not reach a verdict and should be redelivered.
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is the verdict for one batch.
type Result struct {
	Outcome Outcome
	// Reason is the store's result text, or the transport error text.
	Reason string
	// Logs is the number of logs sent to the store.
	Logs int
}

// ErrInvalidBatch marks payloads that cannot be decoded or converted. It is
// never worth retrying.
var ErrInvalidBatch = errors.New("invalid batch")
