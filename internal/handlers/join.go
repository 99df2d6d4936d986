package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"matchmaker-backend/internal/kafka"
	"matchmaker-backend/internal/matchmaking"
	"matchmaker-backend/internal/models"
)

// JoinHandler serves the join socket at /api/v1/queue/{name}/join. A client
// sends one JSON join frame per entry; each admitted entry eventually gets
// exactly one response frame. When the socket closes, every entry of that
// socket still waiting is withdrawn.
type JoinHandler struct {
	tracker   *matchmaking.QueueTracker
	analytics *kafka.AnalyticsService
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

func NewJoinHandler(tracker *matchmaking.QueueTracker, analytics *kafka.AnalyticsService, logger *zap.Logger) *JoinHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JoinHandler{
		tracker:   tracker,
		analytics: analytics,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// joinSession tracks the entries admitted over one socket and serializes
// writes to it.
type joinSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	waiting map[uuid.UUID]struct{}
}

func (h *JoinHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	queueName := mux.Vars(r)["name"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session := &joinSession{conn: conn, waiting: make(map[uuid.UUID]struct{})}

	if _, ok := h.tracker.Get(queueName); !ok {
		session.sendError(nil, "Queue '"+queueName+"' does not exist")
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			break
		}

		var req models.JoinRequest
		if err := json.Unmarshal(data, &req); err != nil {
			session.sendError(nil, "Failed to read join request: invalid JSON")
			continue
		}

		entry := matchmaking.NewEntry(req.ID, req.Players, req.Metadata)
		handle, err := h.tracker.Join(queueName, entry)
		if err != nil {
			session.sendError(&req.ID, "Failed to join queue: "+err.Error())
			continue
		}

		h.analytics.EntryJoined(queueName, req.ID, len(req.Players))
		session.mu.Lock()
		session.waiting[req.ID] = struct{}{}
		session.mu.Unlock()

		go h.awaitResult(session, queueName, req.ID, handle)
	}

	// Socket closed: withdraw every entry that has not found a match yet.
	session.mu.Lock()
	orphaned := make([]uuid.UUID, 0, len(session.waiting))
	for id := range session.waiting {
		orphaned = append(orphaned, id)
	}
	session.mu.Unlock()

	for _, id := range orphaned {
		h.tracker.RemoveEntry(queueName, id)
		h.analytics.EntryLeft(queueName, id)
	}
	h.logger.Debug("websocket connection closed", zap.String("queue", queueName))
}

// awaitResult delivers the one-shot result for a single entry. A successful
// match closes the socket after the response frame, per the join contract.
func (h *JoinHandler) awaitResult(session *joinSession, queueName string, entryID uuid.UUID, handle *matchmaking.ResultHandle) {
	result, ok := <-handle.Wait()

	session.mu.Lock()
	delete(session.waiting, entryID)
	session.mu.Unlock()

	if !ok {
		// Handle dropped without a value: the entry was silently withdrawn.
		return
	}

	if result.Err != nil {
		session.sendError(&entryID, result.Err.Error())
		return
	}

	session.sendJSON(models.JoinSuccess{Teams: result.Teams, Game: result.Game})
	session.writeMu.Lock()
	_ = session.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	session.writeMu.Unlock()
	_ = session.conn.Close()
}

func (s *joinSession) sendError(entryID *uuid.UUID, message string) {
	response := models.JoinError{Error: message}
	if entryID != nil {
		response.Context = entryID.String()
	}
	s.sendJSON(response)
}

func (s *joinSession) sendJSON(body any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteJSON(body)
}
