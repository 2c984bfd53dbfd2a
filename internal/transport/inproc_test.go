package transport

import (
	"testing"
	"time"

	"github.com/octoreflex/edgelif/internal/protocol"
)

func TestBusDeliversUpstreamMessages(t *testing.T) {
	bus := NewBus(4)
	if err := bus.Send(protocol.Upstream{Node: 3, Value: 1.5}); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-bus.Messages():
		if got.Node != 3 || got.Value != 1.5 {
			t.Errorf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestBusBroadcastsToAllSubscribers(t *testing.T) {
	bus := NewBus(0)
	a := bus.Subscribe(1)
	b := bus.Subscribe(1)

	bus.BroadcastInhibit(protocol.NewInhibitCommand(2.0, 3))

	for _, ch := range []<-chan protocol.InhibitCommand{a, b} {
		select {
		case cmd := <-ch:
			if cmd.Beta != 2.0 {
				t.Errorf("got %+v", cmd)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive broadcast")
		}
	}
}

func TestBusBroadcastDoesNotBlockOnFullSubscriberBuffer(t *testing.T) {
	bus := NewBus(0)
	full := bus.Subscribe(1)
	bus.BroadcastInhibit(protocol.NewInhibitCommand(1.0, 1))
	done := make(chan struct{})
	go func() {
		bus.BroadcastInhibit(protocol.NewInhibitCommand(2.0, 2))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber buffer")
	}
	<-full // drain so the goroutine above reflects in test, avoids leak warnings
}
