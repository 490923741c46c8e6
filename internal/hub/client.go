package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/carelink/pkg/protocol"
)

// maxWSMessageSize bounds inbound frames. Subscribe frames are tiny; anything
// larger is a broken client.
const maxWSMessageSize = 64 * 1024

// Client represents a single WebSocket connection. A connection carries at
// most one topic subscription; re-subscribing replaces the previous one, so
// repeated subscribe frames can never duplicate event delivery.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server
	send   chan []byte

	// mu guards topic, cancelSub, and closed. It is never held while
	// calling into the bus: bus handlers take it via sendJSON, so holding
	// it across Subscribe or a cancel func would invert the lock order.
	mu        sync.Mutex
	topic     string
	cancelSub func()
	closed    bool

	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: server,
		send:   make(chan []byte, 256),
	}
}

// Run starts the read and write pumps for this client and blocks until the
// connection drops.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

// readPump reads frames from the WebSocket connection.
func (c *Client) readPump(_ context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxWSMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "client", c.id, "error", err)
			}
			return
		}

		// Reset read deadline on activity
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		c.handleFrame(data)
	}
}

// writePump writes frames and pings to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame parses and dispatches a single inbound frame.
func (c *Client) handleFrame(data []byte) {
	frameType, err := protocol.ParseFrameType(data)
	if err != nil {
		c.sendError(protocol.ErrInvalidRequest, "invalid frame: "+err.Error())
		return
	}

	switch frameType {
	case protocol.FrameTypeSubscribe:
		var sub protocol.SubscribeFrame
		if err := json.Unmarshal(data, &sub); err != nil {
			c.sendError(protocol.ErrInvalidRequest, "malformed subscribe: "+err.Error())
			return
		}
		c.subscribe(sub.Topic)

	default:
		c.sendError(protocol.ErrInvalidRequest, "unexpected frame type: "+frameType)
	}
}

// subscribe attaches this connection to a topic, replacing any previous
// subscription.
func (c *Client) subscribe(topic string) {
	if _, _, err := protocol.ParseTopic(topic); err != nil {
		c.sendError(protocol.ErrInvalidRequest, err.Error())
		return
	}

	cancel := c.server.bus.Subscribe(topic, func(evt protocol.Event) {
		c.sendEvent(topic, evt)
	})

	c.mu.Lock()
	if c.closed {
		// The read pump raced a shutdown; drop the subscription we just
		// registered instead of leaking a handler past Close.
		c.mu.Unlock()
		cancel()
		return
	}
	prev := c.cancelSub
	c.topic = topic
	c.cancelSub = cancel
	c.mu.Unlock()

	if prev != nil {
		prev()
	}

	slog.Debug("hub subscription", "client", c.id, "topic", topic)
	c.sendJSON(protocol.AckFrame{
		Type:     protocol.FrameTypeAck,
		Topic:    topic,
		Protocol: protocol.ProtocolVersion,
	})
}

func (c *Client) sendEvent(topic string, evt protocol.Event) {
	c.sendJSON(protocol.EventFrame{
		Type:  protocol.FrameTypeEvent,
		Topic: topic,
		Event: evt,
	})
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(protocol.ErrorFrame{
		Type:    protocol.FrameTypeError,
		Code:    code,
		Message: message,
	})
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal frame failed", "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		// Best-effort delivery: a stalled client loses the event and
		// recovers by refreshing its lists.
		slog.Warn("client send buffer full, dropping frame", "client", c.id)
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Topic returns the currently subscribed topic, if any.
func (c *Client) Topic() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topic
}

// Close cancels the topic subscription and shuts down the connection. The
// closed flag is set before the send channel closes, so a bus handler or the
// read pump racing a shutdown drops its frame instead of panicking on a
// closed channel.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		cancel := c.cancelSub
		c.cancelSub = nil
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		close(c.send)
	})
}
