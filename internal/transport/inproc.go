package transport

import (
	"sync"

	"github.com/octoreflex/edgelif/internal/protocol"
)

// Bus is the in-process equivalent of Server/Client: it carries the same
// Upstream/InhibitCommand messages through Go channels instead of a TCP
// socket, for the single-process simulate command (spec §5) where nodes
// and the gateway share an address space. Message semantics are identical
// to the wire transport; only the carrier changes.
type Bus struct {
	upstream chan protocol.Upstream

	mu          sync.Mutex
	subscribers []chan protocol.InhibitCommand
}

// NewBus creates an in-process transport with the given upstream buffer
// size (0 is a valid, fully synchronous bus).
func NewBus(bufferSize int) *Bus {
	return &Bus{upstream: make(chan protocol.Upstream, bufferSize)}
}

// Send enqueues an upstream message for the gateway side to consume.
// Mirrors Client.Send's signature so node code can be written against
// either transport interchangeably.
func (b *Bus) Send(msg protocol.Upstream) error {
	b.upstream <- msg
	return nil
}

// Messages returns the channel the gateway-side consumer loop should range
// over.
func (b *Bus) Messages() <-chan protocol.Upstream {
	return b.upstream
}

// Close signals no further messages will be sent.
func (b *Bus) Close() {
	close(b.upstream)
}

// Subscribe registers a new inhibit-command listener and returns the
// channel it will be delivered on. Buffered so a slow node never blocks
// the gateway's broadcast.
func (b *Bus) Subscribe(bufferSize int) <-chan protocol.InhibitCommand {
	ch := make(chan protocol.InhibitCommand, bufferSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// BroadcastInhibit fans an InhibitCommand out to every subscriber
// (satisfies gateway.Broadcaster). A subscriber whose buffer is full is
// skipped rather than blocking the rest of the fleet.
func (b *Bus) BroadcastInhibit(cmd protocol.InhibitCommand) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- cmd:
		default:
		}
	}
}
