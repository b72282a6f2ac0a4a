// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	applog "pitchscope/internal/log"

	"github.com/gorilla/websocket"
)

var wsLog = applog.For("WebSocketSink")

// broadcastBuffer is how many messages may wait for slow clients before new
// ones are dropped.
const broadcastBuffer = 256

// writeWait bounds how long one client may stall a broadcast.
const writeWait = time.Second

// WebSocketSink broadcasts every frame as JSON to all clients connected to
// /ws. Emit never blocks: when the broadcast queue is full the frame is
// dropped.
type WebSocketSink struct {
	addr      string
	lowHz     float64
	highHz    float64
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan Message
	server    *http.Server
	listener  net.Listener
	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   uint64
	droppedMu sync.Mutex
}

// NewWebSocketSink creates a sink serving on addr. Frames are trimmed to
// [lowHz, highHz]. Call Start to begin listening.
func NewWebSocketSink(addr string, lowHz, highHz float64) *WebSocketSink {
	return &WebSocketSink{
		addr:   addr,
		lowHz:  lowHz,
		highHz: highHz,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local display clients only
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, broadcastBuffer),
	}
}

// Start binds the listener and begins serving. Bind errors are returned
// here rather than logged from the server goroutine.
func (wss *WebSocketSink) Start() error {
	ln, err := net.Listen("tcp", wss.addr)
	if err != nil {
		return err
	}
	wss.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wss.handleWebSocket)
	wss.server = &http.Server{Handler: mux}

	wss.wg.Add(2)
	go func() {
		defer wss.wg.Done()
		wsLog.Infof("Starting WebSocket server on %s", ln.Addr())
		if err := wss.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wsLog.Errorf("Server error: %v", err)
		}
	}()
	go func() {
		defer wss.wg.Done()
		wss.handleBroadcasts()
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (wss *WebSocketSink) Addr() net.Addr {
	if wss.listener == nil {
		return nil
	}
	return wss.listener.Addr()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wss *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wss.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLog.Warnf("Upgrade error: %v", err)
		return
	}

	wss.clientsMu.Lock()
	wss.clients[conn] = true
	total := len(wss.clients)
	wss.clientsMu.Unlock()
	wsLog.Infof("Client connected, total: %d", total)

	// Clients only listen; the first read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wss.clientsMu.Lock()
		if wss.clients[conn] {
			delete(wss.clients, conn)
			conn.Close()
		}
		total := len(wss.clients)
		wss.clientsMu.Unlock()
		wsLog.Infof("Client disconnected, total: %d", total)
	}()
}

// handleBroadcasts sends messages to all connected clients
func (wss *WebSocketSink) handleBroadcasts() {
	for msg := range wss.broadcast {
		wss.clientsMu.Lock()
		for client := range wss.clients {
			client.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.WriteJSON(msg); err != nil {
				wsLog.Warnf("Error sending to client: %v", err)
				client.Close()
				delete(wss.clients, client)
			}
		}
		wss.clientsMu.Unlock()
	}
}

// Emit queues frame for broadcast, dropping it if the queue is full.
func (wss *WebSocketSink) Emit(frame Frame) error {
	msg := NewMessage(frame, wss.lowHz, wss.highHz)
	select {
	case wss.broadcast <- msg:
	default:
		wss.droppedMu.Lock()
		wss.dropped++
		wss.droppedMu.Unlock()
	}
	return nil
}

// Dropped returns how many frames were discarded because clients lagged.
func (wss *WebSocketSink) Dropped() uint64 {
	wss.droppedMu.Lock()
	defer wss.droppedMu.Unlock()
	return wss.dropped
}

// Close shuts down the server and disconnects all clients. Emit must not be
// called after Close.
func (wss *WebSocketSink) Close() error {
	var err error
	wss.closeOnce.Do(func() {
		wsLog.Infof("Closing server")

		if wss.server != nil {
			err = wss.server.Close()
		}
		close(wss.broadcast)
		wss.wg.Wait()

		wss.clientsMu.Lock()
		for client := range wss.clients {
			client.Close()
		}
		wss.clients = make(map[*websocket.Conn]bool)
		wss.clientsMu.Unlock()
	})
	return err
}

// Ensure WebSocketSink satisfies the interface
var _ Sink = (*WebSocketSink)(nil)
