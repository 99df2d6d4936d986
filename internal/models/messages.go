package models

import (
	"encoding/json"

	"github.com/google/uuid"

	"matchmaker-backend/internal/matchmaking"
)

// CreateQueueRequest is the body of POST /api/v1/queue.
type CreateQueueRequest struct {
	Name       string          `json:"name"`
	Matchmaker string          `json:"matchmaker"`
	Settings   json.RawMessage `json:"settings"`
}

// MatchmakerData describes a queue's algorithm in API responses.
type MatchmakerData struct {
	Type     string          `json:"type"`
	Settings json.RawMessage `json:"settings"`
}

// QueueData is the API representation of one queue, including its currently
// waiting entries.
type QueueData struct {
	Name       string               `json:"name"`
	Entries    []*matchmaking.Entry `json:"entries"`
	Matchmaker MatchmakerData       `json:"matchmaker"`
}

// JoinRequest is the first text frame a client sends on the join socket.
type JoinRequest struct {
	ID       uuid.UUID      `json:"id"`
	Players  []uuid.UUID    `json:"players"`
	Metadata map[string]any `json:"metadata"`
}

// JoinSuccess is the single success frame delivered to every matched client.
type JoinSuccess struct {
	Teams [][]*matchmaking.Entry `json:"teams"`
	Game  *matchmaking.Game      `json:"game"`
}

// JoinError is the single error frame. Context carries the entry id when the
// error refers to a specific entry.
type JoinError struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}

// StatusResponse acknowledges administrative operations.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries an administrative error message.
type ErrorResponse struct {
	Error string `json:"error"`
}
