package dashboard

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	clientBuffer   = 64
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 512
)

// hub fans alert messages out to connected websocket clients. Slow clients
// that fall behind the buffer are dropped rather than blocking the rest.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	onConnect    func()
	onDisconnect func()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub(onConnect, onDisconnect func()) *hub {
	return &hub{
		clients:      make(map[*client]struct{}),
		onConnect:    onConnect,
		onDisconnect: onDisconnect,
	}
}

// add registers conn, replays the snapshot messages and starts the client's
// read/write pumps.
func (h *hub) add(conn *websocket.Conn, snapshot [][]byte) {
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	for _, msg := range snapshot {
		select {
		case c.send <- msg:
		default:
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.onConnect != nil {
		h.onConnect()
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok && h.onDisconnect != nil {
		h.onDisconnect()
	}
	c.conn.Close()
}

// broadcast queues msg for every client; clients with a full buffer are
// dropped.
func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	var stale []*client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		h.remove(c)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(writeWait)); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readPump discards inbound frames; its job is detecting the close.
func (h *hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
