// Package websocket owns the connection lifecycle: it upgrades incoming
// requests, binds each connection to its own conversation pipeline, pumps
// inbound frames into it and serializes outbound frames back to the peer.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/samtale/samtale/internal/protocol"
	"github.com/samtale/samtale/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Outbound frame buffer per connection. Sends stay ordered because a
	// single writePump drains this channel.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The demo page is served from the same origin; anything else is
		// allowed too since there is no account state to protect.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub tracks the set of live connections and hands each one a fresh
// conversation from the shared pipeline service.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	conversations *usecase.ConversationService
	logger        *zap.Logger
}

// NewHub creates a hub around the shared conversation service.
func NewHub(conversations *usecase.ConversationService, logger *zap.Logger) *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		conversations: conversations,
		logger:        logger,
	}
}

// Run starts the hub's bookkeeping loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.sessionID]; ok {
				delete(h.clients, client.sessionID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))
		}
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Ready reports whether the hub can serve conversations.
func (h *Hub) Ready() bool {
	return h.conversations != nil
}

// Client is a middleman between one websocket connection and its
// conversation pipeline.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound frames, drained by writePump.
	send chan []byte

	// Closed when writePump exits; enqueue bails out instead of blocking
	// on a dead connection.
	done chan struct{}

	sessionID    string
	conversation *usecase.Conversation
	logger       *zap.Logger
}

// HandleWebSocket upgrades the request and runs the connection until the
// peer disconnects or an unrecoverable error occurs.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	client.conversation = hub.conversations.NewConversation(client.enqueue)
	client.sessionID = client.conversation.SessionID()
	client.logger = logger.With(zap.String("sessionID", client.sessionID))

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	// The connection is usable the moment it is accepted.
	if err := client.enqueue(protocol.StatusFrame("ready")); err != nil {
		client.logger.Warn("Failed to send initial status", zap.Error(err))
	}

	return nil
}

// enqueue queues one outbound frame, preserving call order. It is the
// conversation's SendFunc.
func (c *Client) enqueue(frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	}
}

// readPump pumps frames from the websocket connection into the pipeline.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := context.Background()

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			c.logger.Warn("Ignoring non-binary message", zap.Int("type", messageType))
			continue
		}

		if err := c.dispatch(ctx, message); err != nil {
			// Best-effort error report, then tear the connection down.
			c.logger.Error("Connection failed", zap.Error(err))
			if sendErr := c.enqueue(protocol.ErrorFrame(err.Error())); sendErr != nil {
				c.logger.Warn("Failed to report error to peer", zap.Error(sendErr))
			}
			return
		}
	}
}

// dispatch routes one decoded frame. The tag switch is exhaustive over the
// inbound half of the protocol; outbound-only tags are recognized but
// ignored.
func (c *Client) dispatch(ctx context.Context, message []byte) error {
	msgType, payload, err := protocol.Decode(message)
	if err != nil {
		return err
	}

	switch msgType {
	case protocol.MsgAudioIn:
		return c.conversation.HandleAudio(ctx, payload)

	case protocol.MsgHandshake:
		c.logger.Info("Handshake received", zap.Int("configBytes", len(payload)))
		return c.enqueue(protocol.StatusFrame("ready"))

	default:
		c.logger.Warn("Unhandled message type", zap.String("type", msgType.String()))
		return nil
	}
}

// writePump pumps frames from the send channel to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				c.logger.Error("Failed to write frame", zap.Error(err))
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
