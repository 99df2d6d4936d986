package matchmaking

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewMatchmakerDispatch(t *testing.T) {
	flexible, err := NewMatchmaker(TypeFlexible,
		json.RawMessage(`{"teamSize":2,"numberOfTeams":2,"minEntrySize":1,"maxEntrySize":2}`), nil)
	require.NoError(t, err)
	assert.Equal(t, TypeFlexible, flexible.TypeName())

	elo, err := NewMatchmaker(TypeElo,
		json.RawMessage(`{"scalingFactor":0.5,"teamSize":1,"maxSkillDiff":100}`), nil)
	require.NoError(t, err)
	assert.Equal(t, TypeElo, elo.TypeName())
}

func TestNewMatchmakerUnknownType(t *testing.T) {
	_, err := NewMatchmaker("ladder", json.RawMessage(`{}`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown matchmaker type")
}

func TestNewMatchmakerBadSettings(t *testing.T) {
	_, err := NewMatchmaker(TypeFlexible, json.RawMessage(`not json`), nil)
	assert.Error(t, err)

	_, err = NewMatchmaker(TypeElo, json.RawMessage(`{"teamSize":0}`), nil)
	assert.ErrorIs(t, err, ErrInvalidTeamSize)
}

func TestNewMatchmakerThreadsLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m, err := NewMatchmaker(TypeElo,
		json.RawMessage(`{"scalingFactor":0,"teamSize":1,"maxSkillDiff":0}`), zap.New(core))
	require.NoError(t, err)

	// Corrupt an admitted entry so the attempt hits the log-and-skip path.
	bad := ratedEntry(1000)
	require.NoError(t, m.Add(bad))
	delete(bad.Metadata, "elo")

	result := m.Attempt(time.Now())
	assert.Equal(t, ResultSkip, result.Kind)

	warnings := logs.FilterMessage("entry has no elo, which should never happen").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, bad.ID.String(), warnings[0].ContextMap()["entry_id"])
}

func TestFlexibleSettingsRoundTrip(t *testing.T) {
	original := json.RawMessage(`{"teamSize":5,"numberOfTeams":2,"minEntrySize":1,"maxEntrySize":3}`)
	m, err := NewMatchmaker(TypeFlexible, original, nil)
	require.NoError(t, err)

	serialized, err := m.Settings()
	require.NoError(t, err)

	var decoded FlexibleSettings
	require.NoError(t, json.Unmarshal(serialized, &decoded))
	assert.Equal(t, FlexibleSettings{TeamSize: 5, NumberOfTeams: 2, MinEntrySize: 1, MaxEntrySize: 3}, decoded)
}

func TestEloSettingsRoundTrip(t *testing.T) {
	original := json.RawMessage(`{"scalingFactor":1.5,"teamSize":2,"maxSkillDiff":250}`)
	m, err := NewMatchmaker(TypeElo, original, nil)
	require.NoError(t, err)

	serialized, err := m.Settings()
	require.NoError(t, err)

	var decoded EloSettings
	require.NoError(t, json.Unmarshal(serialized, &decoded))
	assert.Equal(t, EloSettings{ScalingFactor: 1.5, TeamSize: 2, MaxSkillDiff: 250}, decoded)
}
