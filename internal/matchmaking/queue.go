package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GameFinder resolves a concrete game server for the formed teams. Teams are
// passed as player id lists grouped per team.
type GameFinder interface {
	Find(ctx context.Context, playlist string, teams [][][]uuid.UUID) (*Game, error)
}

// MatchRecord describes one committed match, for analytics and history.
type MatchRecord struct {
	Queue   string
	Game    *Game
	Teams   [][]*Entry
	Matched time.Time
}

// Queue binds one matchmaker to the result handles of its waiting clients.
// All state is guarded by a single mutex; the guard is released across the
// game finder call and reacquired so that entry removal and result delivery
// stay atomic with respect to each other.
type Queue struct {
	Name string

	mu         sync.Mutex
	matchmaker Matchmaker
	pending    map[uuid.UUID]*ResultHandle

	finder  GameFinder
	logger  *zap.Logger
	onMatch func(MatchRecord)
}

func NewQueue(name string, matchmaker Matchmaker, finder GameFinder, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		Name:       name,
		matchmaker: matchmaker,
		pending:    make(map[uuid.UUID]*ResultHandle),
		finder:     finder,
		logger:     logger.With(zap.String("queue", name)),
	}
}

// OnMatch registers a callback invoked (outside the queue guard) for every
// successfully delivered match.
func (q *Queue) OnMatch(callback func(MatchRecord)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onMatch = callback
}

// Add validates the entry against the matchmaker, enforces per-player
// uniqueness within this queue and allocates the result handle the caller
// waits on.
func (q *Queue) Add(entry *Entry) (*ResultHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.pending[entry.ID]; exists {
		return nil, ErrEntryExists
	}
	for _, waiting := range q.matchmaker.Entries() {
		for _, player := range entry.Players {
			if waiting.HasPlayer(player) {
				return nil, ErrPlayerAlreadyQueued
			}
		}
	}

	if err := q.matchmaker.Add(entry); err != nil {
		return nil, err
	}

	handle := newResultHandle()
	q.pending[entry.ID] = handle
	return handle, nil
}

// Leave removes the entry and fulfils its handle with the given result.
func (q *Queue) Leave(entryID uuid.UUID, result JoinResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(entryID, &result)
}

// RemoveEntry silently cancels an entry: it is taken out of the matchmaker
// and its handle is dropped without a value. Idempotent; removing an entry
// that was already matched is a no-op.
func (q *Queue) RemoveEntry(entryID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(entryID, nil)
}

// RemoveAll drains every entry, delivering reason to each waiting handle.
func (q *Queue) RemoveAll(reason error) []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.matchmaker.RemoveAll()
	for id, handle := range q.pending {
		handle.deliver(JoinResult{Err: reason})
		delete(q.pending, id)
	}
	return drained
}

func (q *Queue) removeLocked(entryID uuid.UUID, result *JoinResult) {
	if _, err := q.matchmaker.Remove(entryID); err != nil {
		q.logger.Debug("entry not present in matchmaker on remove",
			zap.String("entry_id", entryID.String()))
	}
	handle, ok := q.pending[entryID]
	if !ok {
		return
	}
	delete(q.pending, entryID)
	if result != nil {
		handle.deliver(*result)
	} else {
		handle.drop()
	}
}

// Empty reports whether no entries are waiting.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}

// Entries returns a snapshot of the waiting entries.
func (q *Queue) Entries() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.matchmaker.Entries()
}

// MatchmakerType returns the algorithm name and serialized settings.
func (q *Queue) MatchmakerType() (string, []byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	settings, err := q.matchmaker.Settings()
	return q.matchmaker.TypeName(), settings, err
}

// Tick runs one matchmaking pass and handles the outcome. On a match the
// game finder is called with the guard released; the subsequent removal of
// the matched entries and the delivery of the shared result happen together
// under the guard. Entries that disappeared during the finder call (client
// disconnect) are simply left out.
func (q *Queue) Tick(ctx context.Context) Result {
	q.mu.Lock()
	result := q.matchmaker.Attempt(time.Now())

	switch result.Kind {
	case ResultSkip:
		q.mu.Unlock()
		return result

	case ResultFail:
		if len(result.Affected) > 0 {
			for _, id := range result.Affected {
				q.removeLocked(id, &JoinResult{Err: result.Err})
			}
			q.mu.Unlock()
		} else {
			q.mu.Unlock()
			q.RemoveAll(result.Err)
		}
		q.logger.Warn("matchmaker failed", zap.Error(result.Err),
			zap.Int("affected", len(result.Affected)))
		return result
	}

	// Snapshot the matched entries; they stay queued until the match is
	// committed below.
	teams := make([][]*Entry, 0, len(result.Teams))
	playerTeams := make([][][]uuid.UUID, 0, len(result.Teams))
	for _, teamIDs := range result.Teams {
		team := make([]*Entry, 0, len(teamIDs))
		players := make([][]uuid.UUID, 0, len(teamIDs))
		for _, id := range teamIDs {
			if entry, ok := q.matchmaker.Get(id); ok {
				team = append(team, entry)
				players = append(players, entry.Players)
			}
		}
		teams = append(teams, team)
		playerTeams = append(playerTeams, players)
	}
	q.mu.Unlock()

	game, findErr := q.finder.Find(ctx, q.Name, playerTeams)

	q.mu.Lock()
	handles := make([]*ResultHandle, 0)
	for _, team := range teams {
		for _, entry := range team {
			if _, err := q.matchmaker.Remove(entry.ID); err != nil {
				// Entry withdrew while the finder call was in flight.
				continue
			}
			if handle, ok := q.pending[entry.ID]; ok {
				handles = append(handles, handle)
				delete(q.pending, entry.ID)
			}
		}
	}

	joinResult := JoinResult{Teams: teams, Game: game, Err: findErr}
	if findErr != nil {
		joinResult = JoinResult{Err: findErr}
	}
	for _, handle := range handles {
		handle.deliver(joinResult)
	}
	onMatch := q.onMatch
	q.mu.Unlock()

	if findErr != nil {
		q.logger.Warn("game finder failed, ejecting matched entries", zap.Error(findErr))
		return result
	}

	q.logger.Info("match formed",
		zap.String("game_id", game.GameID),
		zap.String("host", game.Host),
		zap.Int("teams", len(teams)))

	if onMatch != nil {
		onMatch(MatchRecord{Queue: q.Name, Game: game, Teams: teams, Matched: time.Now()})
	}
	return result
}
