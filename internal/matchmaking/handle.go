package matchmaking

import "sync"

// JoinResult is the single value delivered to a waiting client: either the
// formed teams plus the located game server, or an error.
type JoinResult struct {
	Teams [][]*Entry
	Game  *Game
	Err   error
}

// Game is the server descriptor resolved for a formed match.
type Game struct {
	GameID string `json:"gameId"`
	Host   string `json:"host"`
	Port   uint16 `json:"port"`
}

// ResultHandle is a single-producer single-consumer one-shot delivery
// channel. The first fulfilment wins; later deliveries and drops are
// silently ignored. Dropping closes the channel without a value, which the
// consumer observes as a closed receive.
type ResultHandle struct {
	once sync.Once
	ch   chan JoinResult
}

func newResultHandle() *ResultHandle {
	return &ResultHandle{ch: make(chan JoinResult, 1)}
}

// Wait returns the channel carrying the eventual result. It yields exactly
// one value, or closes without one if the entry was silently cancelled.
func (h *ResultHandle) Wait() <-chan JoinResult {
	return h.ch
}

func (h *ResultHandle) deliver(result JoinResult) {
	h.once.Do(func() {
		h.ch <- result
		close(h.ch)
	})
}

func (h *ResultHandle) drop() {
	h.once.Do(func() {
		close(h.ch)
	})
}
