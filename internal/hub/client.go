package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	sendBufferSize = 64
)

// Client is one connected websocket session. It belongs to at most one room
// at a time; delivery happens through the buffered Send channel so a slow
// client can never stall a broadcast.
type Client struct {
	ID   string
	Send chan []byte

	hub  *Hub
	conn *websocket.Conn
}

func NewClient(id string, h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		Send: make(chan []byte, sendBufferSize),
		hub:  h,
		conn: conn,
	}
}

// enqueue queues an already-encoded frame. Frames are dropped when the
// buffer is full; a client that far behind recovers from its next join
// snapshot.
func (c *Client) enqueue(data []byte) {
	select {
	case c.Send <- data:
	default:
		zap.L().Debug("dropping frame for slow client", zap.String("client", c.ID))
	}
}

// SendMessage encodes and queues one envelope.
func (c *Client) SendMessage(env Envelope) (err error) {
	var data []byte
	if data, err = json.Marshal(env); err != nil {
		return
	}

	c.enqueue(data)
	return
}

// ReadPump consumes inbound frames until the connection dies, then
// unregisters the client so no room keeps a reference to it.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				zap.L().Debug("websocket read failed", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}

		handler(c, message)
	}
}

// WritePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
