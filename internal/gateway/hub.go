// Package gateway is the visualization sink: it fans payloads out to
// WebSocket clients and keeps the merged tile state for clients that
// connect later.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stockwidget/internal/coordinator"
)

// Hub manages WebSocket clients and the latest tile state.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	state   map[string]json.RawMessage // full refresh with later partials applied
	seq     int64
	updated time.Time

	replay *ReplayBuffer
	log    *slog.Logger

	// Metrics hooks (optional, set externally)
	OnDrop    func()
	OnClients func(n int)
}

// NewHub creates a Hub keeping the last replaySize envelopes for gap backfill.
func NewHub(replaySize int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		state:   make(map[string]json.RawMessage),
		replay:  NewReplayBuffer(replaySize),
		log:     slog.Default().With(slog.String("component", "gateway")),
	}
}

// Push merges p into the tile state and broadcasts it to every client.
// A slow client drops the message rather than blocking the caller.
func (h *Hub) Push(_ context.Context, p coordinator.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", p.Kind(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode %s payload: %w", p.Kind(), err)
	}
	now := time.Now().UTC()

	h.mu.Lock()
	if p.Kind() == coordinator.KindFull {
		h.state = fields
	} else {
		for k, v := range fields {
			h.state[k] = v
		}
	}
	h.seq++
	seq := h.seq
	h.updated = now
	h.mu.Unlock()

	buf := buildEnvelope(p.Kind(), data, now, seq, false)
	h.replay.Push(seq, buf)
	h.broadcast(buf)
	return nil
}

// buildEnvelope wraps a payload: {"type":"...","seq":N,"ts":"...","data":{...}}.
func buildEnvelope(kind coordinator.Kind, data []byte, ts time.Time, seq int64, initial bool) []byte {
	buf := make([]byte, 0, len(data)+96)
	buf = append(buf, `{"type":"`...)
	buf = append(buf, string(kind)...)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"ts":"`...)
	buf = ts.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	if initial {
		buf = append(buf, `,"initial":true`...)
	}
	buf = append(buf, '}')
	return buf
}

func (h *Hub) broadcast(buf []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- buf:
		default:
			if h.OnDrop != nil {
				h.OnDrop()
			}
		}
	}
}

// Snapshot is the merged tile state.
type Snapshot struct {
	Seq     int64                      `json:"seq"`
	Updated time.Time                  `json:"updated"`
	Data    map[string]json.RawMessage `json:"data"`
}

// State returns a copy of the merged tile state.
func (h *Hub) State() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.state))
	for k, v := range h.state {
		cp[k] = v
	}
	return Snapshot{Seq: h.seq, Updated: h.updated, Data: cp}
}

// Missed returns the envelopes with seq in [from, to], oldest first, with
// the range clipped to the envelopes pushed so far. ok is false when the replay buffer no longer
// holds all of them.
func (h *Hub) Missed(from, to int64) (envs [][]byte, ok bool) {
	h.mu.RLock()
	latest := h.seq
	h.mu.RUnlock()
	if from < 1 {
		from = 1
	}
	if to > latest {
		to = latest
	}
	return h.replay.Since(from-1, to)
}

// Register attaches an upgraded connection. A client that reports the last
// seq it saw gets the missed envelopes replayed when the buffer still holds
// all of them; otherwise it gets the merged state as one full envelope.
func (h *Hub) Register(conn *websocket.Conn, lastSeq int64) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client connected", "clients", count)
	if h.OnClients != nil {
		h.OnClients(count)
	}

	go client.writePump()
	client.sendInitialState(lastSeq)
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)

	h.log.Info("ws client disconnected", "clients", count)
	if h.OnClients != nil {
		h.OnClients(count)
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
