package matchmaking

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one admission to a queue: a party of one or more players that is
// matched atomically. TimeQueued is set once at admission and never changes.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	Players    []uuid.UUID    `json:"players"`
	TimeQueued time.Time      `json:"-"`
	Metadata   map[string]any `json:"metadata"`
}

// NewEntry stamps the entry with the current time.
func NewEntry(id uuid.UUID, players []uuid.UUID, metadata map[string]any) *Entry {
	return &Entry{
		ID:         id,
		Players:    players,
		TimeQueued: time.Now(),
		Metadata:   metadata,
	}
}

// EloRating extracts the integer "elo" metadata value. JSON decoding yields
// float64 or json.Number depending on the decoder, so both are accepted as
// long as the value is integral.
func (e *Entry) EloRating() (int64, bool) {
	v, ok := e.Metadata["elo"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// HasPlayer reports whether the given player is part of this entry.
func (e *Entry) HasPlayer(playerID uuid.UUID) bool {
	for _, p := range e.Players {
		if p == playerID {
			return true
		}
	}
	return false
}
