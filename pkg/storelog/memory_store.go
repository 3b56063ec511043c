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
	"errors"
	"fmt"
	"sync"
)

// Fault selects how MemoryStore answers.
type Fault string

const (
	FaultNone        Fault = "none"
	FaultError       Fault = "error"
	FaultValidation  Fault = "validation"
	FaultInfo        Fault = "info"
	FaultUnknown     Fault = "unknown"
	FaultUnavailable Fault = "unavailable"
)

// ErrStoreUnavailable is returned by MemoryStore in FaultUnavailable mode.
var ErrStoreUnavailable = errors.New("store unavailable")

// ParseFault validates a fault name. The empty string means FaultNone.
func ParseFault(s string) (Fault, error) {
	switch f := Fault(s); f {
	case "":
		return FaultNone, nil
	case FaultNone, FaultError, FaultValidation, FaultInfo, FaultUnknown, FaultUnavailable:
		return f, nil
	default:
		return "", fmt.Errorf("unknown fault mode %q", s)
	}
}

// StoredLog is a log accepted by MemoryStore.
type StoredLog struct {
	LogicalAddress string `json:"logicalAddress"`
	Log            Log    `json:"log"`
}

// MemoryStore keeps accepted logs in memory. It backs the stub endpoint and tests.
type MemoryStore struct {
	mu    sync.Mutex
	logs  []StoredLog
	fault Fault
	calls int
}

// NewMemoryStore creates a new MemoryStore with no fault.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fault: FaultNone}
}

// StoreLog stores logs only in FaultNone mode; other modes answer with the
// matching result code or a transport error.
func (m *MemoryStore) StoreLog(_ context.Context, logicalAddress string, logs []Log) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	switch m.fault {
	case FaultUnavailable:
		return Result{}, ErrStoreUnavailable
	case FaultError:
		return Result{ResultCode: ResultError, ResultText: "simulated store error"}, nil
	case FaultValidation:
		return Result{ResultCode: ResultValidationError, ResultText: "simulated validation error"}, nil
	case FaultInfo:
		return Result{ResultCode: ResultInfo, ResultText: "simulated info"}, nil
	case FaultUnknown:
		return Result{ResultCode: "MAYBE", ResultText: "simulated unknown result"}, nil
	}

	for _, l := range logs {
		m.logs = append(m.logs, StoredLog{LogicalAddress: logicalAddress, Log: l})
	}
	return Result{ResultCode: ResultOK}, nil
}

// SetFault switches the answer mode.
func (m *MemoryStore) SetFault(f Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = f
}

func (m *MemoryStore) Fault() Fault {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fault
}

// Logs returns a copy of the stored logs.
func (m *MemoryStore) Logs() []StoredLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StoredLog, len(m.logs))
	copy(out, m.logs)
	return out
}

// Calls returns the number of StoreLog calls, including faulted ones.
func (m *MemoryStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Reset drops stored logs and the call count. The fault mode is kept.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = nil
	m.calls = 0
}
