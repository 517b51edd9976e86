// Package gateway serves signal and sentiment updates to WebSocket clients
// and exposes the REST API on top of the engine's in-process state.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"signalstreamv1/internal/model"

	"github.com/gorilla/websocket"
)

// Hub manages WebSocket clients and fans broadcast updates out to them.
// It delegates envelope construction to the Broadcaster and tracks
// per-channel sequence numbers plus replay buffers for gap backfill.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill
	replayBufs map[string]*ReplayBuffer

	// End-to-end latency tracker (engine emit -> WS fan-out)
	Latency *LatencyTracker

	Broadcaster *Broadcaster
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64 // per-channel seq for gap detection
}

// NewHub creates a new Hub for managing WS clients.
func NewHub() *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		Latency:     NewLatencyTracker(10000), // 10k sample ring buffer
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Run consumes updates from the engine fan-out and broadcasts each one on
// its logical channel ("signal:{symbol}" or "sentiment"). Blocks until the
// input channel closes or ctx is cancelled.
func (h *Hub) Run(ctx context.Context, updates <-chan model.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			h.Broadcaster.Broadcast(u.Channel(), u.JSON())
		}
	}
}

// HandleWSRequest registers an upgraded WebSocket connection. lastTS, when
// set, limits the initial state replay to entries newer than that timestamp.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, lastTS string) {
	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     h,
		symbols: make(map[string]bool),
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendInitialState(lastTS)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
}

// Prime seeds the latest-payload cache for a channel from persisted state,
// so the REST surface is not empty right after a restart. A channel that
// already has a live entry is left untouched.
func (h *Hub) Prime(channel string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.latest[channel]; exists {
		return
	}
	h.latest[channel] = latestEntry{Data: data, TS: time.Now().UTC()}
}

// GetLatestAll returns a snapshot of the latest payload per channel.
func (h *Hub) GetLatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// GetReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
// Used by the /api/v1/missed REST endpoint for client gap backfill.
func (h *Hub) GetReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	result := make([][]byte, len(entries))
	for i, e := range entries {
		result[i] = e.Data
	}
	return result
}

// GetChannelSeq returns the current sequence number for a channel.
func (h *Hub) GetChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
