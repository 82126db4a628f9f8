package game

import "github.com/mkarlsen/geocoin/internal/board"

// EventType identifies a state-change notification kind.
type EventType string

const (
	EventMoved            EventType = "moved"
	EventCacheUpdated     EventType = "cache_updated"
	EventInventoryChanged EventType = "inventory_changed"
	EventReset            EventType = "reset"
)

// Event is a state-change notification. Seq is monotonic per controller so
// pollers can resume from the last sequence they saw.
type Event struct {
	Seq   uint64      `json:"seq"`
	Type  EventType   `json:"type"`
	Cell  *board.Cell `json:"cell,omitempty"`
	Coins int         `json:"coins"`
}

// eventRingCap bounds the replay window for pollers. A poller further behind
// than this re-syncs via a full snapshot.
const eventRingCap = 256
