package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orionos/internal/util"
	"orionos/pkg/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Hub fans events out to every open socket of a profile.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
}

type client struct {
	profileID string
	conn      *websocket.Conn
	send      chan []byte
	once      sync.Once
}

// NewHub builds a hub that accepts upgrades from the allowed origins.
func NewHub(origins util.Origins) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return origins.Allowed(r.Header.Get("Origin"))
			},
		},
	}
}

// Publish queues the event on each of the profile's sockets. A socket whose
// buffer is full is dropped; the shell reloads its snapshot on reconnect.
func (h *Hub) Publish(profileID string, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("realtime encode failed", "err", err, "type", ev.Type)
		return
	}
	h.mu.RLock()
	var slow []*client
	for c := range h.clients[profileID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.remove(c)
	}
}

// Connections reports how many sockets the profile has open.
func (h *Hub) Connections(profileID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[profileID])
}

// ServeWS upgrades the request and registers the socket under profileID.
// It returns once the pumps are started.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, profileID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{profileID: profileID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	util.LoggerFromContext(r.Context()).Info("websocket connected", "profile_id", profileID)
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.profileID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.profileID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.clients[c.profileID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, c.profileID)
			}
		}
		h.mu.Unlock()
		close(c.send)
	})
}

// readPump only drains control frames; clients never send commands here.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
