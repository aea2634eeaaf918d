package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"whatsapp-bulk/internal/delivery"
	"whatsapp-bulk/internal/whatsapp"
)

// Event types pushed to clients.
const (
	EventConnectionState  = "connection_state"
	EventQR               = "qr"
	EventDeliveryProgress = "delivery_progress"
	EventDeliveryFinished = "delivery_finished"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every connected websocket client. New clients first
// receive the latest connection state and pending QR code.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	log        zerolog.Logger

	done chan struct{}

	mu     sync.Mutex
	latest map[string][]byte
	count  int
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		latest:     make(map[string][]byte),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.setCount(0)
			return
		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			for _, payload := range h.replay() {
				client.send <- payload
			}
			h.log.Debug().Int("clients", len(h.clients)).Msg("websocket client registered")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.setCount(len(h.clients))
			h.log.Debug().Int("clients", len(h.clients)).Msg("websocket client unregistered")
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.setCount(len(h.clients))
		}
	}
}

type WSEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// BroadcastEvent queues an event for every client. Events are dropped when
// the queue is full so that senders never block on slow clients.
func (h *Hub) BroadcastEvent(eventType string, data any) {
	payload, err := json.Marshal(WSEvent{Type: eventType, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("type", eventType).Msg("error marshaling websocket event")
		return
	}
	if eventType == EventConnectionState || eventType == EventQR {
		h.mu.Lock()
		h.latest[eventType] = payload
		h.mu.Unlock()
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn().Str("type", eventType).Msg("websocket queue full, event dropped")
	}
}

func (h *Hub) ConnectionState(state whatsapp.State) {
	if state == whatsapp.StateOpen {
		h.mu.Lock()
		delete(h.latest, EventQR)
		h.mu.Unlock()
	}
	h.BroadcastEvent(EventConnectionState, map[string]string{"state": state.String()})
}

func (h *Hub) QR(code string) {
	h.BroadcastEvent(EventQR, map[string]string{"code": code})
}

// ContactDone implements delivery.Observer.
func (h *Hub) ContactDone(p delivery.Progress) {
	h.BroadcastEvent(EventDeliveryProgress, p)
}

func (h *Hub) RunFinished(sum *delivery.Summary) {
	h.BroadcastEvent(EventDeliveryFinished, map[string]any{
		"runId":   sum.RunID,
		"total":   sum.Total,
		"success": sum.SuccessCount,
		"failed":  sum.FailureCount,
	})
}

// ClientCount reports how many clients are registered.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

func (h *Hub) replay() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out [][]byte
	for _, t := range []string{EventConnectionState, EventQR} {
		if p, ok := h.latest[t]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
