package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielpatrickdp/speaking-coach/internal/notify"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256

	// AllSessions subscribes a client to every session's events.
	AllSessions = "*"
)

const (
	MsgEvent     = "event"
	MsgSubscribe = "subscribe"
	MsgPing      = "ping"
	MsgPong      = "pong"
	MsgError     = "error"
)

// WSMessage is the frame exchanged with websocket clients.
type WSMessage struct {
	Type     string        `json:"type"`
	Event    *notify.Event `json:"event,omitempty"`
	Sessions []string      `json:"sessions,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// #region client

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subMu    sync.RWMutex
	sessions map[string]bool
}

func (c *wsClient) subscribe(ids ...string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, id := range ids {
		if id != "" {
			c.sessions[id] = true
		}
	}
}

func (c *wsClient) wants(sessionID string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.sessions[AllSessions] || c.sessions[sessionID]
}

func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(WSMessage{Type: MsgError, Error: "invalid json"})
			continue
		}
		switch msg.Type {
		case MsgSubscribe:
			if len(msg.Sessions) == 0 {
				c.reply(WSMessage{Type: MsgError, Error: "no sessions given"})
				continue
			}
			c.subscribe(msg.Sessions...)
		case MsgPing:
			c.reply(WSMessage{Type: MsgPong})
		default:
			log.Printf("[ws] unknown message type: %s", msg.Type)
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues msg for this client only. The hub closes send when it drops
// the client, so the send happens under the hub's read lock.
func (c *wsClient) reply(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// #endregion

// #region hub

// Hub pushes session events to subscribed websocket clients. It implements
// notify.Notifier; slow clients drop events rather than stall a session.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool

	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	stopOnce   sync.Once

	upgrader websocket.Upgrader
}

// NewHub creates a hub. allowedOrigins limits browser origins; empty allows
// any.
func NewHub(allowedOrigins ...string) *Hub {
	h := &Hub{
		clients:    map[*wsClient]bool{},
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Run services registrations until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[ws] client connected (total: %d)", n)
		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[ws] client disconnected (total: %d)", n)
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify sends e to every client subscribed to its session.
func (h *Hub) Notify(e notify.Event) {
	ev := e
	data, err := json.Marshal(WSMessage{Type: MsgEvent, Event: &ev})
	if err != nil {
		log.Printf("[ws] encode event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(e.SessionID) {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("[ws] client buffer full, dropping %s event", e.Label)
		}
	}
}

// ServeHTTP upgrades the request. The optional ?session= query subscribes
// the client immediately; "*" follows every session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}
	c := &wsClient{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		sessions: map[string]bool{},
	}
	c.subscribe(r.URL.Query()["session"]...)

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// #endregion
