package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"matchmaker-backend/internal/database"
	"matchmaker-backend/internal/gamefinder"
	"matchmaker-backend/internal/kafka"
	"matchmaker-backend/internal/matchmaking"
	"matchmaker-backend/internal/models"
)

// QueueHandler serves the administrative REST endpoints: queue creation and
// inspection, finder settings replacement and match history.
type QueueHandler struct {
	tracker   *matchmaking.QueueTracker
	finder    *gamefinder.Finder
	store     *database.MatchStore
	analytics *kafka.AnalyticsService
	logger    *zap.Logger
}

func NewQueueHandler(tracker *matchmaking.QueueTracker, finder *gamefinder.Finder, store *database.MatchStore, analytics *kafka.AnalyticsService, logger *zap.Logger) *QueueHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueHandler{
		tracker:   tracker,
		finder:    finder,
		store:     store,
		analytics: analytics,
		logger:    logger,
	}
}

// CreateQueue handles POST /api/v1/queue.
func (h *QueueHandler) CreateQueue(w http.ResponseWriter, r *http.Request) {
	var req models.CreateQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "queue name is required"})
		return
	}

	if err := h.tracker.CreateQueue(req.Name, req.Matchmaker, req.Settings, true); err != nil {
		status := http.StatusBadRequest
		writeJSON(w, status, models.ErrorResponse{Error: err.Error()})
		return
	}

	h.analytics.QueueCreated(req.Name, req.Matchmaker)
	writeJSON(w, http.StatusCreated, models.StatusResponse{Status: "Queue created successfully"})
}

// ListQueues handles GET /api/v1/queue.
func (h *QueueHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues := h.tracker.List()
	data := make([]models.QueueData, 0, len(queues))
	for _, queue := range queues {
		qd, err := queueData(queue)
		if err != nil {
			h.logger.Error("failed to serialize queue", zap.String("queue", queue.Name), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to serialize queue"})
			return
		}
		data = append(data, qd)
	}
	writeJSON(w, http.StatusOK, data)
}

// GetQueue handles GET /api/v1/queue/{name}.
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	queue, ok := h.tracker.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "queue '" + name + "' not found"})
		return
	}

	qd, err := queueData(queue)
	if err != nil {
		h.logger.Error("failed to serialize queue", zap.String("queue", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to serialize queue"})
		return
	}
	writeJSON(w, http.StatusOK, qd)
}

// UpdateFinderSettings handles PUT /api/v1/finder, replacing the game finder
// configuration atomically.
func (h *QueueHandler) UpdateFinderSettings(w http.ResponseWriter, r *http.Request) {
	var settings gamefinder.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid settings body"})
		return
	}
	h.finder.UpdateSettings(settings)
	writeJSON(w, http.StatusOK, settings)
}

// GetMatches handles GET /api/v1/matches?queue=&limit=.
func (h *QueueHandler) GetMatches(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: "match history is not configured"})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	matches, err := h.store.GetRecentMatches(r.URL.Query().Get("queue"), limit)
	if err != nil {
		h.logger.Error("failed to query match history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to query match history"})
		return
	}
	if matches == nil {
		matches = []database.MatchHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func queueData(queue *matchmaking.Queue) (models.QueueData, error) {
	typeName, settings, err := queue.MatchmakerType()
	if err != nil {
		return models.QueueData{}, err
	}
	entries := queue.Entries()
	if entries == nil {
		entries = []*matchmaking.Entry{}
	}
	return models.QueueData{
		Name:    queue.Name,
		Entries: entries,
		Matchmaker: models.MatchmakerData{
			Type:     typeName,
			Settings: settings,
		},
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
