package realtime

import (
	"testing"
	"time"

	"github.com/smallbiznis/invoicehub/internal/clock"
)

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func newTestHub() (*Hub, *clock.FakeClock) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	return NewHub(clk), clk
}

func TestUnfilteredClientReceivesEverything(t *testing.T) {
	hub, clk := newTestHub()
	c := hub.Register()
	defer c.Close()

	hub.Publish(EventJobStatus, map[string]any{"job_id": "j1"})
	hub.Publish(EventSystemStatus, "ok")

	events := drain(c)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventJobStatus || events[1].Type != EventSystemStatus {
		t.Fatalf("unexpected event types: %s, %s", events[0].Type, events[1].Type)
	}
	if !events[0].Timestamp.Equal(clk.Now()) {
		t.Fatalf("timestamp = %v, want %v", events[0].Timestamp, clk.Now())
	}
}

func TestSubscriptionFiltersEvents(t *testing.T) {
	hub, _ := newTestHub()
	c := hub.Register()
	defer c.Close()

	c.Subscribe(EventJobStatus)
	hub.Publish(EventJobStatus, "keep")
	hub.Publish(EventDashboardData, "drop")
	hub.Publish(EventSystemStatus, "drop")

	events := drain(c)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != EventJobStatus {
		t.Fatalf("event type = %s", events[0].Type)
	}
}

func TestUnsubscribeNarrowsFurther(t *testing.T) {
	hub, _ := newTestHub()
	c := hub.Register()
	defer c.Close()

	c.Subscribe(EventJobStatus, EventDashboardData)
	c.Unsubscribe(EventJobStatus)

	hub.Publish(EventJobStatus, "drop")
	hub.Publish(EventDashboardData, "keep")

	events := drain(c)
	if len(events) != 1 || events[0].Type != EventDashboardData {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestClosedClientStopsReceiving(t *testing.T) {
	hub, _ := newTestHub()
	c := hub.Register()
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("clients = %d, want 1", got)
	}

	c.Close()
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("clients after close = %d, want 0", got)
	}

	hub.Publish(EventJobStatus, "late")
	if events := drain(c); len(events) != 0 {
		t.Fatalf("closed client received %d events", len(events))
	}

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed")
	}

	// Closing twice is safe.
	c.Close()
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	hub, _ := newTestHub()
	c := hub.Register()
	defer c.Close()

	donech := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer+10; i++ {
			hub.Publish(EventJobStatus, i)
		}
		close(donech)
	}()

	select {
	case <-donech:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow client")
	}

	if events := drain(c); len(events) != clientBuffer {
		t.Fatalf("buffered %d events, want %d", len(events), clientBuffer)
	}
}

func TestFanOutToMultipleClients(t *testing.T) {
	hub, _ := newTestHub()
	a := hub.Register()
	b := hub.Register()
	defer a.Close()
	defer b.Close()

	b.Subscribe(EventSystemStatus)
	hub.Publish(EventJobStatus, "x")

	if got := len(drain(a)); got != 1 {
		t.Fatalf("client a got %d events, want 1", got)
	}
	if got := len(drain(b)); got != 0 {
		t.Fatalf("client b got %d events, want 0", got)
	}
}
