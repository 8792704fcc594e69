package socket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pixil98/go-log"
)

// Keepalive constants, unchanged from
// codefionn-scriptschnell/internal/web/client.go.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Client owns one authenticated websocket connection: it relays
// outbound Envelopes queued on send and inbound frames to onMessage.
// ReadPump/WritePump split, mirroring codefionn-scriptschnell's Client.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	onMessage func(Envelope)
	onClose   func()
}

// NewClient wraps conn. onMessage is invoked for every inbound frame
// off the read goroutine; onClose runs once, when the connection ends
// for any reason (peer close, write failure, unsubscribe).
func NewClient(conn *websocket.Conn, onMessage func(Envelope), onClose func()) *Client {
	return &Client{
		conn:      conn,
		send:      make(chan []byte, 256),
		onMessage: onMessage,
		onClose:   onClose,
	}
}

// Send queues data (an already-encoded Envelope) for delivery. Drops
// the frame rather than blocking if the client is backed up.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	default:
		log.GetLogger(context.Background()).Warnf("socket: client send buffer full, dropping frame")
	}
}

// Close stops WritePump by closing the send channel. Safe to call more
// than once only if the caller serializes calls; the one caller here is
// serve's townClosing branch in handler.go, which calls it after
// teardown has unsubscribed from the bus.
func (c *Client) Close() {
	close(c.send)
}

// ReadPump pumps inbound frames until the connection errors or closes,
// then runs onClose.
func (c *Client) ReadPump() {
	defer func() {
		c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.GetLogger(context.Background()).Warnf("socket: read error: %v", err)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			log.GetLogger(context.Background()).Warnf("socket: malformed frame: %v", err)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(envelope)
		}
	}
}

// WritePump drains send to the connection and pings on pingPeriod
// until send is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
