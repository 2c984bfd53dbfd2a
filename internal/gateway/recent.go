package gateway

import "github.com/octoreflex/edgelif/internal/protocol"

// recentQueue is the bounded FIFO of enriched messages the dashboard
// snapshot is built from (spec §4.4.4 "max_recent"). Oldest entries are
// dropped once the cap is reached; slicing off the front reuses the
// underlying array, so this stays amortized O(1) per push.
type recentQueue struct {
	items []protocol.Enriched
	max   int
}

func newRecentQueue(max int) *recentQueue {
	return &recentQueue{max: max}
}

func (q *recentQueue) push(e protocol.Enriched) {
	q.items = append(q.items, e)
	if len(q.items) > q.max {
		q.items = q.items[1:]
	}
}

func (q *recentQueue) all() []protocol.Enriched {
	return q.items
}

// setMax adjusts the cap, for config hot-reload (max_recent). Shrinking
// trims the oldest entries immediately rather than waiting for them to age
// out one push at a time.
func (q *recentQueue) setMax(max int) {
	q.max = max
	if len(q.items) > q.max {
		q.items = q.items[len(q.items)-q.max:]
	}
}
