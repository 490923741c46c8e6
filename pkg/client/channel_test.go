package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/carelink/internal/bus"
	"github.com/nextlevelbuilder/carelink/internal/hub"
	"github.com/nextlevelbuilder/carelink/pkg/protocol"
)

func newTestChannel(t *testing.T, b *bus.Bus, topic string) (*Channel, *hub.Server) {
	t.Helper()
	hubServer := hub.NewServer(b)
	ts := httptest.NewServer(http.HandlerFunc(hubServer.HandleWS))
	t.Cleanup(ts.Close)

	ch := NewChannel(ChannelOptions{
		URL:            "ws" + strings.TrimPrefix(ts.URL, "http"),
		Topic:          topic,
		ReconnectDelay: 50 * time.Millisecond,
	})
	ch.Start()
	t.Cleanup(ch.Close)
	return ch, hubServer
}

func waitForState(t *testing.T, ch *Channel, want ChannelState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for ch.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want %v", ch.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, ch *Channel) Message {
	t.Helper()
	select {
	case m, ok := <-ch.Messages():
		if !ok {
			t.Fatal("message stream closed")
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message within deadline")
	}
	return Message{}
}

func TestChannelDelivery(t *testing.T) {
	b := bus.New()
	topic := protocol.TopicElderly("e1")
	ch, _ := newTestChannel(t, b, topic)

	waitForState(t, ch, StateSubscribed)

	b.Publish(topic, protocol.Event{
		Kind:          protocol.EventConnectionRequest,
		ConnectionID:  "r1",
		CaregiverName: "Carol M.",
	})

	m := receive(t, ch)
	if m.Event == nil || m.Event.Kind != protocol.EventConnectionRequest {
		t.Fatalf("message = %+v", m)
	}
	if m.Event.CaregiverName != "Carol M." {
		t.Errorf("caregiverName = %q", m.Event.CaregiverName)
	}
}

func TestChannelReconnectDeliversOnce(t *testing.T) {
	b := bus.New()
	topic := protocol.TopicCaregiver("c1")
	ch, hubServer := newTestChannel(t, b, topic)

	waitForState(t, ch, StateSubscribed)

	// Drop every server-side connection; the channel must come back and
	// resubscribe on its own.
	hubServer.Shutdown()
	waitForState(t, ch, StateDisconnected)
	waitForState(t, ch, StateSubscribed)

	if n := b.SubscriberCount(topic); n != 1 {
		t.Fatalf("subscriber count after reconnect = %d, want 1", n)
	}

	b.Publish(topic, protocol.Event{Kind: protocol.EventConnectionApproved, ConnectionID: "x"})

	m := receive(t, ch)
	if m.Event == nil || m.Event.ConnectionID != "x" {
		t.Fatalf("message = %+v", m)
	}

	select {
	case extra := <-ch.Messages():
		t.Fatalf("duplicate delivery after reconnect: %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestChannelCloseIsSynchronousAndIdempotent(t *testing.T) {
	b := bus.New()
	topic := protocol.TopicElderly("e1")
	ch, _ := newTestChannel(t, b, topic)
	waitForState(t, ch, StateSubscribed)

	ch.Close()
	ch.Close() // second call is a no-op

	if ch.State() != StateDisconnected {
		t.Errorf("state after close = %v", ch.State())
	}

	// The message stream ends once closed.
	if _, ok := <-ch.Messages(); ok {
		t.Error("message stream still open after close")
	}

	// The server-side subscription is gone, so no prompts can leak into a
	// future channel instance.
	deadline := time.Now().Add(2 * time.Second)
	for b.SubscriberCount(topic) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("server-side subscription leaked past close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
