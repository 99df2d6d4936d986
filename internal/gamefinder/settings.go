package gamefinder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Default JSONPath expressions for extracting the server descriptor from the
// finder endpoint's response.
const (
	DefaultBaseURL  = "http://localhost:8081/api/v1/game/{playlist}"
	DefaultIDPath   = "$.gameId"
	DefaultHostPath = "$.host"
	DefaultPortPath = "$.port"
)

// Environment variables overriding the settings file. Env wins.
const (
	EnvBaseURL  = "GAMEFINDER_BASE_URL"
	EnvIDPath   = "GAMEFINDER_ID_PATH"
	EnvHostPath = "GAMEFINDER_HOST_PATH"
	EnvPortPath = "GAMEFINDER_PORT_PATH"
)

// Settings configures where and how the finder resolves game servers.
// BaseURL may contain the literal token {playlist}, replaced by the queue
// name on every lookup.
type Settings struct {
	BaseURL  string `json:"baseUrl"`
	IDPath   string `json:"idPath"`
	HostPath string `json:"hostPath"`
	PortPath string `json:"portPath"`
}

func DefaultSettings() Settings {
	return Settings{
		BaseURL:  DefaultBaseURL,
		IDPath:   DefaultIDPath,
		HostPath: DefaultHostPath,
		PortPath: DefaultPortPath,
	}
}

// LoadOrCreateSettings reads the settings file, writing the defaults when it
// does not exist yet, and applies environment overrides on top.
func LoadOrCreateSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		out, marshalErr := json.MarshalIndent(settings, "", "  ")
		if marshalErr != nil {
			return settings, marshalErr
		}
		if writeErr := os.WriteFile(path, out, 0o644); writeErr != nil {
			return settings, fmt.Errorf("failed to create %s: %w", path, writeErr)
		}
	case err != nil:
		return settings, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &settings); err != nil {
			return settings, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	settings.applyEnv()
	return settings, nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv(EnvBaseURL); v != "" {
		s.BaseURL = v
	}
	if v := os.Getenv(EnvIDPath); v != "" {
		s.IDPath = v
	}
	if v := os.Getenv(EnvHostPath); v != "" {
		s.HostPath = v
	}
	if v := os.Getenv(EnvPortPath); v != "" {
		s.PortPath = v
	}
}
