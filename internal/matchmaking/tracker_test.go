package matchmaking

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var duelSettings = json.RawMessage(`{"teamSize":1,"numberOfTeams":2,"minEntrySize":1,"maxEntrySize":1}`)

// newTestTracker uses a tick interval long enough that no tick fires during
// the test, so queue state only changes through explicit calls.
func newTestTracker(t *testing.T, finder GameFinder) (*QueueTracker, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "queues.json")
	return NewQueueTracker(finder, file, time.Hour, nil), file
}

func TestTrackerCreateAndJoin(t *testing.T) {
	tracker, _ := newTestTracker(t, &fakeFinder{})

	require.NoError(t, tracker.CreateQueue("duels", TypeFlexible, duelSettings, false))
	assert.ErrorIs(t, tracker.CreateQueue("duels", TypeFlexible, duelSettings, false), ErrQueueExists)

	handle, err := tracker.Join("duels", partyOf(1))
	require.NoError(t, err)
	assert.NotNil(t, handle)

	_, err = tracker.Join("ranked", partyOf(1))
	assert.ErrorIs(t, err, ErrQueueNotFound)
}

func TestTrackerCreateQueueRejectsBadConfig(t *testing.T) {
	tracker, _ := newTestTracker(t, &fakeFinder{})

	err := tracker.CreateQueue("broken", "ladder", json.RawMessage(`{}`), false)
	require.Error(t, err)

	err = tracker.CreateQueue("broken", TypeFlexible, json.RawMessage(`{"teamSize":0}`), false)
	assert.ErrorIs(t, err, ErrInvalidTeamSize)

	_, ok := tracker.Get("broken")
	assert.False(t, ok)
}

func TestTrackerLockRefusesJoins(t *testing.T) {
	tracker, _ := newTestTracker(t, &fakeFinder{})
	require.NoError(t, tracker.CreateQueue("duels", TypeFlexible, duelSettings, false))

	tracker.Lock()
	assert.True(t, tracker.Locked())

	_, err := tracker.Join("duels", partyOf(1))
	assert.ErrorIs(t, err, ErrTrackerLocked)
}

func TestTrackerList(t *testing.T) {
	tracker, _ := newTestTracker(t, &fakeFinder{})
	require.NoError(t, tracker.CreateQueue("zeta", TypeFlexible, duelSettings, false))
	require.NoError(t, tracker.CreateQueue("alpha", TypeFlexible, duelSettings, false))

	queues := tracker.List()
	require.Len(t, queues, 2)
	assert.Equal(t, "alpha", queues[0].Name)
	assert.Equal(t, "zeta", queues[1].Name)
}

func TestTrackerSaveLoadRoundTrip(t *testing.T) {
	tracker, file := newTestTracker(t, &fakeFinder{})

	require.NoError(t, tracker.CreateQueue("duels", TypeFlexible, duelSettings, true))
	require.NoError(t, tracker.CreateQueue("ranked", TypeElo,
		json.RawMessage(`{"scalingFactor":0.5,"teamSize":1,"maxSkillDiff":100}`), true))

	// Entries are transient and must not end up in the file.
	_, err := tracker.Join("duels", partyOf(1))
	require.NoError(t, err)
	require.NoError(t, tracker.SaveToFile())

	restored := NewQueueTracker(&fakeFinder{}, file, time.Hour, nil)
	require.NoError(t, restored.LoadFromFile())

	queues := restored.List()
	require.Len(t, queues, 2)
	assert.Equal(t, "duels", queues[0].Name)
	assert.Equal(t, "ranked", queues[1].Name)

	typeName, settings, err := queues[1].MatchmakerType()
	require.NoError(t, err)
	assert.Equal(t, TypeElo, typeName)

	var elo EloSettings
	require.NoError(t, json.Unmarshal(settings, &elo))
	assert.Equal(t, EloSettings{ScalingFactor: 0.5, TeamSize: 1, MaxSkillDiff: 100}, elo)

	for _, q := range queues {
		assert.Empty(t, q.Entries(), "restored queues must start without entries")
	}
}

func TestTrackerLoadMissingFileCreatesIt(t *testing.T) {
	tracker, file := newTestTracker(t, &fakeFinder{})

	require.NoError(t, tracker.LoadFromFile())
	assert.Empty(t, tracker.List())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestTrackerLoadCorruptFileStartsEmpty(t *testing.T) {
	tracker, file := newTestTracker(t, &fakeFinder{})
	require.NoError(t, os.WriteFile(file, []byte("{{{"), 0o644))

	require.NoError(t, tracker.LoadFromFile())
	assert.Empty(t, tracker.List())
}

func TestTrackerLoadSkipsUnknownMatcher(t *testing.T) {
	tracker, file := newTestTracker(t, &fakeFinder{})

	stored := `[
		{"name":"duels","matcher":"flexible","settings":{"teamSize":1,"numberOfTeams":2,"minEntrySize":1,"maxEntrySize":1}},
		{"name":"mystery","matcher":"ladder","settings":{}},
		{"name":"","matcher":"flexible","settings":{}}
	]`
	require.NoError(t, os.WriteFile(file, []byte(stored), 0o644))

	require.NoError(t, tracker.LoadFromFile())

	queues := tracker.List()
	require.Len(t, queues, 1)
	assert.Equal(t, "duels", queues[0].Name)
}

func TestTrackerAllQueuesEmptyAndDrain(t *testing.T) {
	tracker, _ := newTestTracker(t, &fakeFinder{})
	require.NoError(t, tracker.CreateQueue("duels", TypeFlexible, duelSettings, false))

	assert.True(t, tracker.AllQueuesEmpty())

	entry := partyOf(1)
	_, err := tracker.Join("duels", entry)
	require.NoError(t, err)
	assert.False(t, tracker.AllQueuesEmpty())

	// Drain must give up once the context expires while an entry remains.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tracker.Drain(ctx), context.DeadlineExceeded)

	tracker.RemoveEntry("duels", entry.ID)
	assert.True(t, tracker.AllQueuesEmpty())
	require.NoError(t, tracker.Drain(context.Background()))
}

func TestTrackerRemoveEntryUnknownQueue(t *testing.T) {
	tracker, _ := newTestTracker(t, &fakeFinder{})
	// Unknown queue names are ignored.
	tracker.RemoveEntry("ghost", partyOf(1).ID)
}

func TestTrackerEndToEndMatch(t *testing.T) {
	finder := &fakeFinder{game: &Game{GameID: "game-1", Host: "10.0.0.5", Port: 7777}}
	file := filepath.Join(t.TempDir(), "queues.json")
	tracker := NewQueueTracker(finder, file, 10*time.Millisecond, nil)

	matched := make(chan MatchRecord, 1)
	tracker.OnMatch(func(r MatchRecord) {
		select {
		case matched <- r:
		default:
		}
	})

	require.NoError(t, tracker.CreateQueue("duels", TypeFlexible, duelSettings, false))

	handleA, err := tracker.Join("duels", partyOf(1))
	require.NoError(t, err)
	handleB, err := tracker.Join("duels", partyOf(1))
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	var resultA, resultB JoinResult
	var ok bool
	select {
	case resultA, ok = <-handleA.Wait():
		require.True(t, ok)
	case <-deadline:
		t.Fatal("timed out waiting for the first result")
	}
	select {
	case resultB, ok = <-handleB.Wait():
		require.True(t, ok)
	case <-deadline:
		t.Fatal("timed out waiting for the second result")
	}

	require.NoError(t, resultA.Err)
	require.NoError(t, resultB.Err)
	assert.Equal(t, "game-1", resultA.Game.GameID)
	assert.Same(t, resultA.Game, resultB.Game)

	select {
	case record := <-matched:
		assert.Equal(t, "duels", record.Queue)
	case <-time.After(time.Second):
		t.Fatal("match callback never fired")
	}

	assert.True(t, tracker.AllQueuesEmpty())
}
