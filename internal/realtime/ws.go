package realtime

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer = 256
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	maxFrameSize      = 1 << 20
)

// WSHandler upgrades HTTP requests to websocket connections and bridges them
// into the router: one read pump feeding frames in, one write pump draining a
// buffered send channel out.
type WSHandler struct {
	router     *Router
	upgrader   websocket.Upgrader
	sendBuffer int
	writeWait  time.Duration
	pongWait   time.Duration
}

// WSOptions tune a WSHandler. Zero values fall back to defaults.
type WSOptions struct {
	SendBuffer int
	WriteWait  time.Duration
	PongWait   time.Duration
}

func NewWSHandler(router *Router) *WSHandler {
	return NewWSHandlerWithOptions(router, WSOptions{})
}

func NewWSHandlerWithOptions(router *Router, opts WSOptions) *WSHandler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	return &WSHandler{
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sendBuffer: opts.SendBuffer,
		writeWait:  opts.WriteWait,
		pongWait:   opts.PongWait,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed: %v", err)
		return
	}
	peer := &wsPeer{
		conn: conn,
		send: make(chan Envelope, h.sendBuffer),
	}
	client := h.router.Attach(peer)

	go h.writePump(peer)
	go h.readPump(peer, client)
}

// wsPeer implements Sender over one gorilla websocket connection.
type wsPeer struct {
	conn   *websocket.Conn
	send   chan Envelope
	mu     sync.Mutex
	closed bool
}

// Send queues env without blocking the router loop. A peer that cannot drain
// its buffer is disconnected rather than allowed to stall everyone else.
func (p *wsPeer) Send(env Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.send <- env:
	default:
		p.closed = true
		close(p.send)
	}
}

func (p *wsPeer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)
}

func (h *WSHandler) readPump(p *wsPeer, c *Client) {
	defer func() {
		h.router.HandleClose(c)
		p.close()
		_ = p.conn.Close()
	}()
	p.conn.SetReadLimit(maxFrameSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: connection %s read error: %v", c.ID(), err)
			}
			return
		}
		h.router.HandleFrame(c, data)
	}
}

func (h *WSHandler) writePump(p *wsPeer) {
	ping := time.NewTicker(h.pongWait * 9 / 10)
	defer func() {
		ping.Stop()
		_ = p.conn.Close()
	}()
	for {
		select {
		case env, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ping.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
