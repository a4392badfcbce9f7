package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/lingolens/internal/annotation"
)

const (
	writeWait   = 5 * time.Second
	clientQueue = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// annotationsMessage is pushed to clients whenever the annotation set changes.
type annotationsMessage struct {
	Version     uint64                  `json:"version"`
	Annotations []annotation.Annotation `json:"annotations"`
	Timestamp   int64                   `json:"timestamp"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// AnnotationsHandler broadcasts annotation changes via WebSocket.
type AnnotationsHandler struct {
	manager     *annotation.Manager
	clients     map[*wsClient]bool
	mu          sync.RWMutex
	unsubscribe func()
}

// NewAnnotationsHandler creates a new AnnotationsHandler subscribed to m.
func NewAnnotationsHandler(m *annotation.Manager) *AnnotationsHandler {
	h := &AnnotationsHandler{
		manager: m,
		clients: make(map[*wsClient]bool),
	}
	h.unsubscribe = m.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *AnnotationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &wsClient{conn: conn, send: make(chan []byte, clientQueue)}

	// Send the current state first.
	if msg, err := encodeAnnotations(h.manager.Version(), h.manager.Snapshot()); err == nil {
		c.send <- msg
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	done := make(chan struct{})
	go h.writeLoop(c, done)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
	<-done
}

func (h *AnnotationsHandler) writeLoop(c *wsClient, done chan<- struct{}) {
	defer close(done)
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			// Drain until the reader removes the client.
			for range c.send {
			}
			return
		}
	}
}

func (h *AnnotationsHandler) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast sends the annotation list to all connected clients. Slow
// clients miss updates rather than block the caller.
func (h *AnnotationsHandler) broadcast(list []annotation.Annotation) {
	msg, err := encodeAnnotations(h.manager.Version(), list)
	if err != nil {
		log.Printf("Error encoding annotations: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *AnnotationsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the manager and disconnects every client.
func (h *AnnotationsHandler) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

func encodeAnnotations(version uint64, list []annotation.Annotation) ([]byte, error) {
	if list == nil {
		list = []annotation.Annotation{}
	}
	return json.Marshal(annotationsMessage{
		Version:     version,
		Annotations: list,
		Timestamp:   time.Now().UnixMilli(),
	})
}
