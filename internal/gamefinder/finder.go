package gamefinder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"matchmaker-backend/internal/matchmaking"
)

// ErrInvalidPort is returned when the configured port path resolves to a
// value outside the unsigned 16-bit range.
var ErrInvalidPort = errors.New("game finder response has an invalid port")

// GameNotFoundError is returned for any non-2xx finder response.
type GameNotFoundError struct {
	Status int
}

func (e *GameNotFoundError) Error() string {
	return fmt.Sprintf("game finder returned status %d", e.Status)
}

// InvalidFieldError is returned when a configured JSONPath does not resolve
// to a value of the expected type.
type InvalidFieldError struct {
	Field string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("game finder response is missing a valid %q field", e.Field)
}

// Finder resolves formed teams to a concrete game server over HTTP. Its
// settings are hot-swappable: lookups read a snapshot under a read lock and
// run the HTTP call without holding it, while UpdateSettings excludes
// readers only for the swap itself.
type Finder struct {
	mu       sync.RWMutex
	settings Settings

	client *http.Client
	logger *zap.Logger
}

func NewFinder(settings Settings, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{
		settings: settings,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Settings returns the current configuration.
func (f *Finder) Settings() Settings {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.settings
}

// UpdateSettings atomically replaces the configuration.
func (f *Finder) UpdateSettings(settings Settings) {
	f.mu.Lock()
	f.settings = settings
	f.mu.Unlock()
	f.logger.Info("game finder settings updated", zap.String("base_url", settings.BaseURL))
}

// Find issues a GET to the configured endpoint with the queue name
// substituted into the URL and the teams JSON-encoded in the request body,
// then extracts the server descriptor via the configured JSONPaths.
func (f *Finder) Find(ctx context.Context, playlist string, teams [][][]uuid.UUID) (*matchmaking.Game, error) {
	settings := f.Settings()

	body, err := json.Marshal(teams)
	if err != nil {
		return nil, fmt.Errorf("failed to encode teams: %w", err)
	}

	url := strings.ReplaceAll(settings.BaseURL, "{playlist}", playlist)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build game finder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("game finder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &GameNotFoundError{Status: resp.StatusCode}
	}

	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode game finder response: %w", err)
	}

	gameID, err := stringAt(doc, settings.IDPath, "gameId")
	if err != nil {
		return nil, err
	}
	host, err := stringAt(doc, settings.HostPath, "host")
	if err != nil {
		return nil, err
	}
	port, err := portAt(doc, settings.PortPath)
	if err != nil {
		return nil, err
	}

	return &matchmaking.Game{GameID: gameID, Host: host, Port: port}, nil
}

func stringAt(doc any, path, field string) (string, error) {
	value, err := jsonpath.Get(path, doc)
	if err != nil {
		return "", &InvalidFieldError{Field: field}
	}
	s, ok := value.(string)
	if !ok {
		return "", &InvalidFieldError{Field: field}
	}
	return s, nil
}

func portAt(doc any, path string) (uint16, error) {
	value, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, &InvalidFieldError{Field: "port"}
	}
	number, ok := value.(float64)
	if !ok {
		return 0, &InvalidFieldError{Field: "port"}
	}
	if number != float64(int64(number)) || number < 0 || number > 65535 {
		return 0, ErrInvalidPort
	}
	return uint16(number), nil
}
