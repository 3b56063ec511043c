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
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockKafkaBroker accepts TCP connections and records request frames without
// speaking the real protocol. It is enough to observe that a client dialed
// the configured address.
type mockKafkaBroker struct {
	listener    net.Listener
	addr        string
	frames      atomic.Int64
	connections atomic.Int64
	closed      atomic.Bool
	wg          sync.WaitGroup
}

func newMockKafkaBroker(t *testing.T) *mockKafkaBroker {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start mock Kafka broker: %v", err)
	}
	b := &mockKafkaBroker{listener: listener, addr: listener.Addr().String()}
	b.wg.Add(1)
	go b.acceptLoop()
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func (b *mockKafkaBroker) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	err := b.listener.Close()
	b.wg.Wait()
	return err
}

func (b *mockKafkaBroker) acceptLoop() {
	defer b.wg.Done()
	for !b.closed.Load() {
		conn, err := b.listener.Accept()
		if err != nil {
			if b.closed.Load() {
				return
			}
			continue
		}
		b.connections.Add(1)
		b.wg.Add(1)
		go b.handle(conn)
	}
}

func (b *mockKafkaBroker) handle(conn net.Conn) {
	defer b.wg.Done()
	defer func() { _ = conn.Close() }()

	buf := make([]byte, 64*1024)
	for !b.closed.Load() {
		if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
			return
		}
		if _, err := io.ReadFull(conn, buf[:4]); err != nil {
			return
		}
		n := int(binary.BigEndian.Uint32(buf[:4]))
		if n <= 0 || n > len(buf) {
			return
		}
		if _, err := io.ReadFull(conn, buf[:n]); err != nil {
			return
		}
		b.frames.Add(1)
		// Echo a truncated frame so the client fails fast instead of hanging.
		resp := make([]byte, 8)
		binary.BigEndian.PutUint32(resp[0:4], 4)
		copy(resp[4:8], buf[4:8])
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

func (b *mockKafkaBroker) waitForConnections(ctx context.Context, n int64) bool {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.connections.Load() >= n {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
