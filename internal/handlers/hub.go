package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"gallery/internal/logging"
	"gallery/internal/metrics"
	"gallery/internal/pipeline"
	"gallery/internal/render"

	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBuffer  = 256
	maxReadSize = 512
)

// Stream message types.
const (
	MessageSnapshot = "snapshot"
	MessageReset    = "reset"
	MessageItem     = "item"
	MessageEvict    = "evict"
	MessageProgress = "progress"
	MessageComplete = "complete"
	MessageFailure  = "failure"
)

// Message is one event on the session stream.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ItemData is the payload of an item message.
type ItemData struct {
	Index   int    `json:"index"`
	Path    string `json:"path,omitempty"`
	Status  string `json:"status"`
	DataURI string `json:"dataUri,omitempty"`
	Error   string `json:"error,omitempty"`
}

func itemData(o pipeline.Outcome) ItemData {
	d := ItemData{Index: o.Index, Path: o.Path, Status: o.Kind.String(), DataURI: o.DataURI}
	if o.Err != nil {
		d.Error = o.Err.Error()
	}
	return d
}

// Hub fans session events out to WebSocket clients. It implements
// render.Renderer and is meant to sit behind a render.Loop, which makes it
// the only writer of client queues.
//
// Slow clients lose messages rather than holding up the loop.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 << 10,
			// nil CheckOrigin refuses handshakes from other origins
		},
		clients: make(map[*Client]struct{}),
	}
}

// Client is one stream connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	backlog   [][]byte
	done      chan struct{}
	closeOnce sync.Once
}

// Upgrade switches the request to the WebSocket protocol. The client
// receives nothing until it is registered.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}, nil
}

// Register adds c to the broadcast set. The backlog is written before any
// broadcast message.
func (h *Hub) Register(c *Client, backlog ...Message) {
	for _, msg := range backlog {
		if data, err := encode(msg); err == nil {
			c.backlog = append(c.backlog, data)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.close()
		return
	}
	h.clients[c] = struct{}{}
	metrics.StreamClients.Set(float64(len(h.clients)))
	logging.Debug("Stream client %s connected (%d total)", c.conn.RemoteAddr(), len(h.clients))
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		metrics.StreamClients.Set(float64(len(h.clients)))
		logging.Debug("Stream client %s disconnected", c.conn.RemoteAddr())
	}
	h.mu.Unlock()
	c.close()
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	metrics.StreamClients.Set(0)
}

func encode(msg Message) ([]byte, error) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to encode stream message %s: %v", msg.Type, err)
	}
	return data, err
}

func (h *Hub) broadcast(msg Message) {
	data, err := encode(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			metrics.StreamMessagesDropped.Inc()
		}
	}
}

func (h *Hub) Reset(folder string) {
	h.broadcast(Message{Type: MessageReset, Data: map[string]string{"folder": folder}})
}

func (h *Hub) Show(o pipeline.Outcome) {
	h.broadcast(Message{Type: MessageItem, Data: itemData(o)})
}

func (h *Hub) Evict(indices []int) {
	h.broadcast(Message{Type: MessageEvict, Data: map[string][]int{"indices": indices}})
}

func (h *Hub) Progress(p render.Progress) {
	h.broadcast(Message{Type: MessageProgress, Data: p})
}

func (h *Hub) Complete() {
	h.broadcast(Message{Type: MessageComplete})
}

func (h *Hub) Failure(err error) {
	h.broadcast(Message{Type: MessageFailure, Data: map[string]string{"error": err.Error()}})
}

// Run pumps messages until the connection ends.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// close asks writePump to send a close frame and drop the connection.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump only watches for the client going away; clients send nothing
// but control frames.
func (c *Client) readPump() {
	defer c.hub.remove(c)

	c.conn.SetReadLimit(maxReadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("Stream client read error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for _, data := range c.backlog {
		select {
		case <-c.done:
			c.goingAway()
			return
		default:
		}
		if !c.write(websocket.TextMessage, data) {
			return
		}
	}
	c.backlog = nil

	for {
		select {
		case data := <-c.send:
			if !c.write(websocket.TextMessage, data) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			c.goingAway()
			return
		}
	}
}

func (c *Client) goingAway() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
}

func (c *Client) write(messageType int, data []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		logging.Debug("Stream write failed: %v", err)
		return false
	}
	return true
}
