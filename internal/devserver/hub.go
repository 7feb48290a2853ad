package devserver

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// EventKind tells the browser client what to do.
type EventKind string

const (
	EventReload EventKind = "reload" // full page reload
	EventCSS    EventKind = "css"    // swap one stylesheet in place
)

// Event is one live-reload message, sent as SSE data.
type Event struct {
	Kind EventKind `json:"kind"`
	Path string    `json:"path,omitempty"` // URL path of the stylesheet for EventCSS
	Seq  uint64    `json:"seq"`
}

const heartbeatInterval = 30 * time.Second

// Hub fans live-reload events out to connected SSE clients.
type Hub struct {
	mu       sync.RWMutex
	nextID   int
	seq      uint64
	clients  map[int]*client
	closed   bool
	recorder metrics.Recorder
}

type client struct {
	id   int
	ch   chan Event
	done chan struct{}
}

// NewHub returns an empty hub; rec may be nil.
func NewHub(rec metrics.Recorder) *Hub {
	return &Hub{clients: map[int]*client{}, recorder: metrics.OrNoop(rec)}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{ch: make(chan Event, 8), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "live reload shutting down", http.StatusServiceUnavailable)
		return
	}
	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetReloadClients(n)
	defer h.remove(c.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			slog.Debug("Live reload write failed", logfields.Error(err))
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send(": connected\n\n") {
		return
	}

	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if !send(": ping\n\n") {
				return
			}
		case ev := <-c.ch:
			data, _ := json.Marshal(ev)
			if !send("id: " + strconv.FormatUint(ev.Seq, 10) + "\ndata: " + string(data) + "\n\n") {
				return
			}
		}
	}
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetReloadClients(n)
	}
}

// Broadcast sends ev to every client. Clients whose buffers are full are
// dropped; their browsers reconnect on their own.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.seq++
	ev.Seq = h.seq
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- ev:
		default:
			dropped++
			h.remove(c.id)
		}
	}
	h.recorder.IncReloadBroadcast()
	slog.Debug("Live reload broadcast", "kind", string(ev.Kind), logfields.Clients(len(snapshot)), "dropped", dropped)
}

// Shutdown disconnects all clients and ignores later broadcasts.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetReloadClients(0)
}
