package client

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/carelink/pkg/protocol"
)

// ChannelState is the notification channel's connection state.
type ChannelState int32

const (
	StateDisconnected ChannelState = iota
	StateConnecting
	StateConnected
	StateSubscribed
)

func (s ChannelState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Message is one inbound notification. Event is nil when the payload did not
// parse; Raw always carries the frame bytes so nothing is silently lost.
type Message struct {
	Event *protocol.Event
	Raw   []byte
}

// ChannelOptions configures a notification channel.
type ChannelOptions struct {
	// URL is the hub's WebSocket endpoint, e.g. ws://host:8080/ws.
	URL string

	// Topic is the single topic this channel subscribes to, derived from the
	// user's role and id (protocol.TopicForRole).
	Topic string

	// ReconnectDelay is the fixed pause between connection attempts.
	// Defaults to 5 seconds.
	ReconnectDelay time.Duration

	Dialer *websocket.Dialer
}

// Channel maintains a persistent subscription to one notification topic. It
// reconnects forever with a fixed delay until Close is called; every
// successful (re)connection re-sends the subscribe frame, and the hub keeps
// one subscription per connection, so reconnects never duplicate delivery.
type Channel struct {
	opts  ChannelOptions
	state atomic.Int32
	msgs  chan Message
	done  chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewChannel(opts ChannelOptions) *Channel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Channel{
		opts: opts,
		msgs: make(chan Message, 64),
		done: make(chan struct{}),
	}
}

// Start launches the connection loop. Call once.
func (ch *Channel) Start() {
	ch.wg.Add(1)
	go ch.run()
}

// Messages returns the inbound notification stream. The channel is closed
// after Close returns.
func (ch *Channel) Messages() <-chan Message {
	return ch.msgs
}

// State returns the current connection state.
func (ch *Channel) State() ChannelState {
	return ChannelState(ch.state.Load())
}

// Close shuts the channel down and waits for the connection loop to exit.
// Safe to call more than once.
func (ch *Channel) Close() {
	ch.closeOnce.Do(func() {
		close(ch.done)
		ch.mu.Lock()
		if ch.conn != nil {
			ch.conn.Close()
		}
		ch.mu.Unlock()
		ch.wg.Wait()
		close(ch.msgs)
	})
}

func (ch *Channel) run() {
	defer ch.wg.Done()
	defer ch.setState(StateDisconnected)

	for {
		select {
		case <-ch.done:
			return
		default:
		}

		ch.setState(StateConnecting)
		conn, _, err := ch.opts.Dialer.Dial(ch.opts.URL, nil)
		if err != nil {
			slog.Warn("notification channel dial failed", "url", ch.opts.URL, "error", err)
			ch.setState(StateDisconnected)
			if !ch.sleep() {
				return
			}
			continue
		}

		ch.mu.Lock()
		select {
		case <-ch.done:
			// Closed while dialing.
			ch.mu.Unlock()
			conn.Close()
			return
		default:
		}
		ch.conn = conn
		ch.mu.Unlock()

		ch.setState(StateConnected)
		if err := conn.WriteJSON(protocol.SubscribeFrame{
			Type:  protocol.FrameTypeSubscribe,
			Topic: ch.opts.Topic,
		}); err != nil {
			slog.Warn("subscribe failed", "topic", ch.opts.Topic, "error", err)
			conn.Close()
		} else {
			ch.readLoop(conn)
		}

		ch.mu.Lock()
		ch.conn = nil
		ch.mu.Unlock()
		ch.setState(StateDisconnected)

		select {
		case <-ch.done:
			return
		default:
		}
		slog.Info("notification channel lost, reconnecting", "topic", ch.opts.Topic, "delay", ch.opts.ReconnectDelay)
		if !ch.sleep() {
			return
		}
	}
}

// readLoop consumes frames until the connection drops.
func (ch *Channel) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		frameType, err := protocol.ParseFrameType(data)
		if err != nil {
			// Pass the raw payload up rather than dropping it.
			ch.emit(Message{Raw: data})
			continue
		}

		switch frameType {
		case protocol.FrameTypeAck:
			ch.setState(StateSubscribed)
			slog.Debug("subscription acknowledged", "topic", ch.opts.Topic)

		case protocol.FrameTypeEvent:
			var frame protocol.EventFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ch.emit(Message{Raw: data})
				continue
			}
			evt := frame.Event
			ch.emit(Message{Event: &evt, Raw: data})

		case protocol.FrameTypeError:
			var frame protocol.ErrorFrame
			if err := json.Unmarshal(data, &frame); err == nil {
				slog.Warn("hub error", "code", frame.Code, "message", frame.Message)
			}

		default:
			ch.emit(Message{Raw: data})
		}
	}
}

func (ch *Channel) emit(m Message) {
	select {
	case ch.msgs <- m:
	case <-ch.done:
	}
}

func (ch *Channel) setState(s ChannelState) {
	ch.state.Store(int32(s))
}

// sleep waits out the reconnect delay. Returns false if the channel was
// closed meanwhile.
func (ch *Channel) sleep() bool {
	t := time.NewTimer(ch.opts.ReconnectDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ch.done:
		return false
	}
}
