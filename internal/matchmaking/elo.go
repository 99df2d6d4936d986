package matchmaking

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EloMatchmaker pairs the two waiting entries whose ratings are closest,
// within a window that widens the longer an entry has been queued. Every
// match is two teams of one entry each.
type EloMatchmaker struct {
	scalingFactor float64
	teamSize      int
	maxSkillDiff  int64

	entries map[uuid.UUID]*Entry

	// Sorted rating index: ratings holds the distinct rating values in
	// ascending order, byRating the entry ids at each value.
	ratings  []int64
	byRating map[int64]map[uuid.UUID]struct{}

	logger *zap.Logger
}

// EloSettings is the persisted configuration of an EloMatchmaker.
type EloSettings struct {
	ScalingFactor float64 `json:"scalingFactor"`
	TeamSize      int     `json:"teamSize"`
	MaxSkillDiff  int64   `json:"maxSkillDiff"`
}

func NewElo(settings EloSettings, logger *zap.Logger) (*EloMatchmaker, error) {
	if settings.ScalingFactor < 0 {
		return nil, ErrInvalidScaling
	}
	if settings.TeamSize < 1 {
		return nil, ErrInvalidTeamSize
	}
	if settings.MaxSkillDiff < 0 {
		return nil, ErrInvalidSkillDiff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EloMatchmaker{
		scalingFactor: settings.ScalingFactor,
		teamSize:      settings.TeamSize,
		maxSkillDiff:  settings.MaxSkillDiff,
		entries:       make(map[uuid.UUID]*Entry),
		byRating:      make(map[int64]map[uuid.UUID]struct{}),
		logger:        logger,
	}, nil
}

func NewEloFromSettings(raw json.RawMessage, logger *zap.Logger) (*EloMatchmaker, error) {
	var settings EloSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse elo settings: %w", err)
	}
	return NewElo(settings, logger)
}

func (m *EloMatchmaker) TypeName() string {
	return TypeElo
}

func (m *EloMatchmaker) Settings() (json.RawMessage, error) {
	return json.Marshal(EloSettings{
		ScalingFactor: m.scalingFactor,
		TeamSize:      m.teamSize,
		MaxSkillDiff:  m.maxSkillDiff,
	})
}

func (m *EloMatchmaker) Add(entry *Entry) error {
	if len(entry.Players) == 0 {
		return ErrNoPlayers
	}
	if len(entry.Players) != m.teamSize {
		return fmt.Errorf("%w: party of %d, need %d", ErrWrongTeamSize, len(entry.Players), m.teamSize)
	}
	elo, ok := entry.EloRating()
	if !ok {
		return ErrMissingElo
	}
	if _, exists := m.entries[entry.ID]; exists {
		return ErrEntryExists
	}

	m.entries[entry.ID] = entry
	m.indexRating(elo, entry.ID)
	return nil
}

func (m *EloMatchmaker) Remove(id uuid.UUID) (*Entry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	delete(m.entries, id)

	if elo, ok := entry.EloRating(); ok {
		m.unindexRating(elo, id)
	}
	return entry, nil
}

func (m *EloMatchmaker) RemoveAll() []*Entry {
	drained := make([]*Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		drained = append(drained, entry)
	}
	m.entries = make(map[uuid.UUID]*Entry)
	m.ratings = nil
	m.byRating = make(map[int64]map[uuid.UUID]struct{})
	return drained
}

func (m *EloMatchmaker) Get(id uuid.UUID) (*Entry, bool) {
	entry, ok := m.entries[id]
	return entry, ok
}

func (m *EloMatchmaker) Entries() []*Entry {
	entries := make([]*Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}
	return entries
}

// Attempt scans each entry as a seed and looks for the opponent with the
// closest rating. A candidate is accepted when the rating gap is within
// maxSkillDiff and, if the scaling factor is positive, also within the
// wait-time window floor(secondsWaited * scalingFactor). A scaling factor of
// zero leaves only the absolute cap.
func (m *EloMatchmaker) Attempt(now time.Time) Result {
	for id, entry := range m.entries {
		elo, ok := entry.EloRating()
		if !ok {
			// Add rejects entries without elo, so this is an invariant
			// violation; skip the entry rather than crash.
			m.logger.Warn("entry has no elo, which should never happen",
				zap.String("entry_id", id.String()))
			continue
		}

		window := m.maxSkillDiff
		if m.scalingFactor > 0 {
			waited := now.Sub(entry.TimeQueued).Seconds()
			if waited < 0 {
				waited = 0
			}
			grown := int64(waited * m.scalingFactor)
			if grown < window {
				window = grown
			}
		}

		best, found := m.closestOpponent(id, elo, window)
		if found {
			return Matched([][]uuid.UUID{{id}, {best}})
		}
	}
	return Skip("No teams found")
}

// closestOpponent scans the sorted rating index over [elo-window, elo+window]
// and returns the id with the smallest rating gap.
func (m *EloMatchmaker) closestOpponent(seed uuid.UUID, elo, window int64) (uuid.UUID, bool) {
	lower, upper := elo-window, elo+window

	var best uuid.UUID
	found := false
	minDiff := int64(-1)

	start := sort.Search(len(m.ratings), func(i int) bool { return m.ratings[i] >= lower })
	for i := start; i < len(m.ratings) && m.ratings[i] <= upper; i++ {
		rating := m.ratings[i]
		diff := rating - elo
		if diff < 0 {
			diff = -diff
		}
		for candidate := range m.byRating[rating] {
			if candidate == seed {
				continue
			}
			if !found || diff < minDiff {
				best = candidate
				minDiff = diff
				found = true
			}
		}
	}
	return best, found
}

func (m *EloMatchmaker) indexRating(elo int64, id uuid.UUID) {
	ids, ok := m.byRating[elo]
	if !ok {
		ids = make(map[uuid.UUID]struct{})
		m.byRating[elo] = ids
		pos := sort.Search(len(m.ratings), func(i int) bool { return m.ratings[i] >= elo })
		m.ratings = append(m.ratings, 0)
		copy(m.ratings[pos+1:], m.ratings[pos:])
		m.ratings[pos] = elo
	}
	ids[id] = struct{}{}
}

func (m *EloMatchmaker) unindexRating(elo int64, id uuid.UUID) {
	ids, ok := m.byRating[elo]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(m.byRating, elo)
		pos := sort.Search(len(m.ratings), func(i int) bool { return m.ratings[i] >= elo })
		if pos < len(m.ratings) && m.ratings[pos] == elo {
			m.ratings = append(m.ratings[:pos], m.ratings[pos+1:]...)
		}
	}
}
