// SPDX-License-Identifier: MIT
package transport

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startTestWebSocketSink(t *testing.T) *WebSocketSink {
	t.Helper()
	s := NewWebSocketSink("127.0.0.1:0", 0, 1000)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func dialTestClient(t *testing.T, s *WebSocketSink) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Registration happens after the handshake completes.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.clientsMu.Lock()
		n := len(s.clients)
		s.clientsMu.Unlock()
		if n > 0 {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatal("client was never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketSinkBroadcast(t *testing.T) {
	s := startTestWebSocketSink(t)
	conn := dialTestClient(t, s)

	if err := s.Emit(testFrame(3, true)); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Seq != 3 || msg.Note != "G4" || len(msg.Magnitudes) != 11 {
		t.Errorf("message = %+v", msg)
	}
}

func TestWebSocketSinkDropsWhenFull(t *testing.T) {
	// Not started: nothing drains the queue.
	s := NewWebSocketSink("127.0.0.1:0", 0, 1000)
	for i := 0; i < broadcastBuffer+10; i++ {
		if err := s.Emit(testFrame(uint64(i), false)); err != nil {
			t.Fatal(err)
		}
	}
	if s.Dropped() != 10 {
		t.Errorf("Dropped() = %d, want 10", s.Dropped())
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on an unstarted sink: %v", err)
	}
}

func TestWebSocketSinkEmitDoesNotBlock(t *testing.T) {
	s := startTestWebSocketSink(t)
	dialTestClient(t, s) // Never reads.

	start := time.Now()
	for i := 0; i < 5*broadcastBuffer; i++ {
		_ = s.Emit(testFrame(uint64(i), true))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Emit blocked for %v", elapsed)
	}
}

func TestWebSocketSinkStartError(t *testing.T) {
	s := startTestWebSocketSink(t)
	other := NewWebSocketSink(s.Addr().String(), 0, 1000)
	if err := other.Start(); err == nil {
		other.Close()
		t.Fatal("expected address in use error")
	}
}

func TestWebSocketSinkCloseIsIdempotent(t *testing.T) {
	s := NewWebSocketSink("127.0.0.1:0", 0, 1000)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
