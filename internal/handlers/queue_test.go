package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchmaker-backend/internal/gamefinder"
	"matchmaker-backend/internal/matchmaking"
	"matchmaker-backend/internal/models"
)

const duelSettings = `{"teamSize":1,"numberOfTeams":2,"minEntrySize":1,"maxEntrySize":1}`

func newTestRouter(t *testing.T) (*mux.Router, *matchmaking.QueueTracker, *gamefinder.Finder) {
	t.Helper()

	finder := gamefinder.NewFinder(gamefinder.DefaultSettings(), nil)
	file := filepath.Join(t.TempDir(), "queues.json")
	tracker := matchmaking.NewQueueTracker(finder, file, time.Hour, nil)

	handler := NewQueueHandler(tracker, finder, nil, nil, nil)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/queue", handler.CreateQueue).Methods("POST")
	api.HandleFunc("/queue", handler.ListQueues).Methods("GET")
	api.HandleFunc("/queue/{name}", handler.GetQueue).Methods("GET")
	api.HandleFunc("/finder", handler.UpdateFinderSettings).Methods("PUT")
	api.HandleFunc("/matches", handler.GetMatches).Methods("GET")
	return router, tracker, finder
}

func doRequest(router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestCreateQueue(t *testing.T) {
	router, tracker, _ := newTestRouter(t)

	resp := doRequest(router, "POST", "/api/v1/queue",
		`{"name":"duels","matchmaker":"flexible","settings":`+duelSettings+`}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	var status models.StatusResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &status))
	assert.Equal(t, "Queue created successfully", status.Status)

	_, ok := tracker.Get("duels")
	assert.True(t, ok)
}

func TestCreateQueueRejectsBadRequests(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for name, body := range map[string]string{
		"invalid json": `{not json`,
		"missing name": `{"matchmaker":"flexible","settings":` + duelSettings + `}`,
		"unknown type": `{"name":"q","matchmaker":"ladder","settings":{}}`,
		"bad settings": `{"name":"q","matchmaker":"flexible","settings":{"teamSize":0}}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := doRequest(router, "POST", "/api/v1/queue", body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)

			var errResp models.ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
			assert.NotEmpty(t, errResp.Error)
		})
	}
}

func TestCreateQueueNameCollision(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := `{"name":"duels","matchmaker":"flexible","settings":` + duelSettings + `}`
	require.Equal(t, http.StatusCreated, doRequest(router, "POST", "/api/v1/queue", body).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, "POST", "/api/v1/queue", body).Code)
}

func TestListQueues(t *testing.T) {
	router, tracker, _ := newTestRouter(t)

	require.NoError(t, tracker.CreateQueue("zeta", matchmaking.TypeFlexible, json.RawMessage(duelSettings), false))
	require.NoError(t, tracker.CreateQueue("alpha", matchmaking.TypeElo,
		json.RawMessage(`{"scalingFactor":0,"teamSize":1,"maxSkillDiff":100}`), false))

	resp := doRequest(router, "GET", "/api/v1/queue", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var queues []models.QueueData
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &queues))
	require.Len(t, queues, 2)
	assert.Equal(t, "alpha", queues[0].Name)
	assert.Equal(t, matchmaking.TypeElo, queues[0].Matchmaker.Type)
	assert.Equal(t, "zeta", queues[1].Name)
	assert.NotNil(t, queues[0].Entries)
}

func TestGetQueue(t *testing.T) {
	router, tracker, _ := newTestRouter(t)
	require.NoError(t, tracker.CreateQueue("duels", matchmaking.TypeFlexible, json.RawMessage(duelSettings), false))

	resp := doRequest(router, "GET", "/api/v1/queue/duels", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var queue models.QueueData
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &queue))
	assert.Equal(t, "duels", queue.Name)
	assert.Equal(t, matchmaking.TypeFlexible, queue.Matchmaker.Type)
	assert.Empty(t, queue.Entries)

	var settings matchmaking.FlexibleSettings
	require.NoError(t, json.Unmarshal(queue.Matchmaker.Settings, &settings))
	assert.Equal(t, 1, settings.TeamSize)
	assert.Equal(t, 2, settings.NumberOfTeams)
}

func TestGetQueueNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	resp := doRequest(router, "GET", "/api/v1/queue/ghost", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdateFinderSettings(t *testing.T) {
	router, _, finder := newTestRouter(t)

	body := `{"baseUrl":"http://games.internal/{playlist}","idPath":"$.id","hostPath":"$.addr","portPath":"$.p"}`
	resp := doRequest(router, "PUT", "/api/v1/finder", body)
	require.Equal(t, http.StatusOK, resp.Code)

	settings := finder.Settings()
	assert.Equal(t, "http://games.internal/{playlist}", settings.BaseURL)
	assert.Equal(t, "$.id", settings.IDPath)

	resp = doRequest(router, "PUT", "/api/v1/finder", `{broken`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetMatchesWithoutStore(t *testing.T) {
	router, _, _ := newTestRouter(t)

	resp := doRequest(router, "GET", "/api/v1/matches", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
