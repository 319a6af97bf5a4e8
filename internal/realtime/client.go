package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per connection; a peer that cannot drain this is
	// treated as failed.
	sendBufferSize = 256
)

// ErrClientClosed is returned by Send once the connection is closing or its
// outbound buffer is full.
var ErrClientClosed = errors.New("client connection closed")

// Conn is the subset of a websocket connection the core touches. Satisfied
// by *websocket.Conn; tests substitute an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Connection lifecycle. Transitions only move forward; there is no way out
// of stateClosed.
const (
	stateConnecting int32 = iota
	stateActive
	stateClosing
	stateClosed
)

// Client is one live connection, owned exclusively by the hub entry it is
// registered under. It is never shared across user identifiers.
type Client struct {
	id             string
	userID         uint
	username       string
	conversationID uint

	conn  Conn
	send  chan []byte
	state int32

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn Conn, conversationID, userID uint, username string) *Client {
	return &Client{
		id:             uuid.New().String(),
		userID:         userID,
		username:       username,
		conversationID: conversationID,
		conn:           conn,
		send:           make(chan []byte, sendBufferSize),
		state:          stateConnecting,
		done:           make(chan struct{}),
	}
}

func (c *Client) ID() string           { return c.id }
func (c *Client) UserID() uint         { return c.userID }
func (c *Client) Username() string     { return c.username }
func (c *Client) ConversationID() uint { return c.conversationID }

func (c *Client) setState(state int32) {
	atomic.StoreInt32(&c.state, state)
}

func (c *Client) isClosing() bool {
	return atomic.LoadInt32(&c.state) >= stateClosing
}

// Send queues a frame for delivery. It never blocks: a full buffer means the
// peer stopped draining and the connection is reported as failed.
func (c *Client) Send(payload []byte) error {
	if c.isClosing() {
		return ErrClientClosed
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrClientClosed
	}
}

// Close moves the connection into Closing and shuts the underlying transport.
// Safe to call from any goroutine, any number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.setState(stateClosing)
		close(c.done)
		c.conn.Close()
	})
}

// writePump drains the outbound buffer onto the connection and keeps the
// peer alive with pings. One writePump per connection; it exits when the
// client closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}
