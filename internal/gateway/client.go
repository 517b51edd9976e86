package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Per-client subscription state. An empty symbol set means the client
	// receives every signal channel.
	subMu        sync.RWMutex
	symbols      map[string]bool
	noSentiment  bool
	hasSubscribe bool
}

// subscribeMsg is the client -> server subscription control message.
type subscribeMsg struct {
	Type      string   `json:"type"`
	Symbols   []string `json:"symbols"`
	Sentiment *bool    `json:"sentiment,omitempty"`
	ReqID     string   `json:"req_id,omitempty"`
}

func (c *Client) sendInitialState(lastTS string) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}

		envelope, _ := json.Marshal(map[string]interface{}{
			"channel":     channel,
			"data":        json.RawMessage(entry.Data),
			"ts":          entry.TS.Format(time.RFC3339Nano),
			"channel_seq": entry.Seq,
			"initial":     true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: use NextWriter to batch queued messages
			// into a single WebSocket frame with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		switch base.Type {
		case "SUBSCRIBE":
			var sub subscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				c.sendError(sub.ReqID, "invalid SUBSCRIBE: "+err.Error())
				continue
			}
			c.handleSubscribe(sub)

		case "UNSUBSCRIBE":
			var unsub subscribeMsg
			if err := json.Unmarshal(msg, &unsub); err != nil {
				continue
			}
			c.handleUnsubscribe(unsub)

		default:
			// Application-level ping for clients that cannot send WS pings
			if base.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      base.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}

// handleSubscribe replaces the client's symbol filter. Symbols are
// upper-cased so clients may send either "btcusdt" or "BTCUSDT".
func (c *Client) handleSubscribe(msg subscribeMsg) {
	c.subMu.Lock()
	c.hasSubscribe = true
	c.symbols = make(map[string]bool, len(msg.Symbols))
	for _, s := range msg.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			c.symbols[s] = true
		}
	}
	if msg.Sentiment != nil {
		c.noSentiment = !*msg.Sentiment
	}
	count := len(c.symbols)
	c.subMu.Unlock()

	log.Printf("[gateway] client subscribed: symbols=%v sentiment=%v", msg.Symbols, msg.Sentiment == nil || *msg.Sentiment)

	ack, _ := json.Marshal(map[string]interface{}{
		"type":    "subscribed",
		"req_id":  msg.ReqID,
		"symbols": count,
	})
	select {
	case c.send <- ack:
	default:
	}
}

// handleUnsubscribe removes symbols from the client's filter. An empty
// symbol list clears the subscription back to receive-everything.
func (c *Client) handleUnsubscribe(msg subscribeMsg) {
	c.subMu.Lock()
	if len(msg.Symbols) == 0 {
		c.symbols = make(map[string]bool)
		c.hasSubscribe = false
	} else {
		for _, s := range msg.Symbols {
			delete(c.symbols, strings.ToUpper(strings.TrimSpace(s)))
		}
	}
	c.subMu.Unlock()

	log.Printf("[gateway] client unsubscribed: symbols=%v", msg.Symbols)
}

func (c *Client) sendError(reqID, message string) {
	payload, _ := json.Marshal(map[string]string{
		"type":   "error",
		"req_id": reqID,
		"error":  message,
	})
	select {
	case c.send <- payload:
	default:
	}
}

// matchesChannel checks whether a broadcast channel passes this client's
// subscription filter. Channels are "signal:{symbol}" or "sentiment".
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if channel == "sentiment" {
		return !c.noSentiment
	}

	symbol, ok := strings.CutPrefix(channel, "signal:")
	if !ok {
		// Non-data channel, always deliver
		return true
	}

	if !c.hasSubscribe || len(c.symbols) == 0 {
		// No explicit subscription: receive every signal channel
		return true
	}
	return c.symbols[symbol]
}
