package matchmaking

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FlexibleMatchmaker packs waiting parties into a fixed number of teams of
// exactly TeamSize players each. Parties are atomic: an entry is never split
// across teams.
type FlexibleMatchmaker struct {
	teamSize      int
	numberOfTeams int
	minEntrySize  int
	maxEntrySize  int

	// compositions holds every unordered partition of teamSize, in the
	// deterministic order produced by FindUniqueAddends. compositionCounts
	// caches the per-size multiplicity of each composition.
	compositions      [][]int
	compositionCounts []map[int]int

	entries       map[uuid.UUID]*Entry
	entriesBySize map[int][]uuid.UUID
}

// FlexibleSettings is the persisted configuration of a FlexibleMatchmaker.
type FlexibleSettings struct {
	TeamSize      int `json:"teamSize"`
	NumberOfTeams int `json:"numberOfTeams"`
	MinEntrySize  int `json:"minEntrySize"`
	MaxEntrySize  int `json:"maxEntrySize"`
}

// NewFlexible validates the configuration and precomputes the composition
// table.
func NewFlexible(settings FlexibleSettings) (*FlexibleMatchmaker, error) {
	if settings.TeamSize < 1 {
		return nil, ErrInvalidTeamSize
	}
	if settings.NumberOfTeams < 1 {
		return nil, ErrInvalidNumTeams
	}
	if settings.MinEntrySize < 1 || settings.MinEntrySize > settings.MaxEntrySize || settings.MaxEntrySize > settings.TeamSize {
		return nil, fmt.Errorf("%w: min=%d max=%d teamSize=%d",
			ErrInvalidEntryBounds, settings.MinEntrySize, settings.MaxEntrySize, settings.TeamSize)
	}

	compositions, err := FindUniqueAddends(settings.TeamSize)
	if err != nil {
		return nil, err
	}

	counts := make([]map[int]int, len(compositions))
	for i, comp := range compositions {
		c := make(map[int]int)
		for _, size := range comp {
			c[size]++
		}
		counts[i] = c
	}

	return &FlexibleMatchmaker{
		teamSize:          settings.TeamSize,
		numberOfTeams:     settings.NumberOfTeams,
		minEntrySize:      settings.MinEntrySize,
		maxEntrySize:      settings.MaxEntrySize,
		compositions:      compositions,
		compositionCounts: counts,
		entries:           make(map[uuid.UUID]*Entry),
		entriesBySize:     make(map[int][]uuid.UUID),
	}, nil
}

// NewFlexibleFromSettings builds the matchmaker from a persisted settings
// blob.
func NewFlexibleFromSettings(raw json.RawMessage) (*FlexibleMatchmaker, error) {
	var settings FlexibleSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse flexible settings: %w", err)
	}
	return NewFlexible(settings)
}

func (m *FlexibleMatchmaker) TypeName() string {
	return TypeFlexible
}

func (m *FlexibleMatchmaker) Settings() (json.RawMessage, error) {
	return json.Marshal(FlexibleSettings{
		TeamSize:      m.teamSize,
		NumberOfTeams: m.numberOfTeams,
		MinEntrySize:  m.minEntrySize,
		MaxEntrySize:  m.maxEntrySize,
	})
}

func (m *FlexibleMatchmaker) Add(entry *Entry) error {
	if len(entry.Players) == 0 {
		return ErrNoPlayers
	}
	size := len(entry.Players)
	if size < m.minEntrySize || size > m.maxEntrySize {
		return fmt.Errorf("%w: party of %d, allowed [%d, %d]",
			ErrPartySizeOutOfRange, size, m.minEntrySize, m.maxEntrySize)
	}
	if _, exists := m.entries[entry.ID]; exists {
		return ErrEntryExists
	}

	m.entries[entry.ID] = entry
	m.entriesBySize[size] = append(m.entriesBySize[size], entry.ID)
	return nil
}

func (m *FlexibleMatchmaker) Remove(id uuid.UUID) (*Entry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	delete(m.entries, id)

	size := len(entry.Players)
	bucket := m.entriesBySize[size]
	for i, bucketID := range bucket {
		if bucketID == id {
			m.entriesBySize[size] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	return entry, nil
}

func (m *FlexibleMatchmaker) RemoveAll() []*Entry {
	drained := make([]*Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		drained = append(drained, entry)
	}
	m.entries = make(map[uuid.UUID]*Entry)
	m.entriesBySize = make(map[int][]uuid.UUID)
	return drained
}

func (m *FlexibleMatchmaker) Get(id uuid.UUID) (*Entry, bool) {
	entry, ok := m.entries[id]
	return entry, ok
}

func (m *FlexibleMatchmaker) Entries() []*Entry {
	entries := make([]*Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}
	return entries
}

// Attempt tries to assign one composition per team such that the combined
// per-size demand fits the currently waiting entries. The first assignment
// found in depth-first order wins, which biases teams toward fewer, larger
// parties. Attempt only reads the indices; the Queue removes matched entries
// after committing the match.
func (m *FlexibleMatchmaker) Attempt(now time.Time) Result {
	sizeCount := make(map[int]int, len(m.entriesBySize))
	for size, ids := range m.entriesBySize {
		if len(ids) > 0 {
			sizeCount[size] = len(ids)
		}
	}

	// Compositions that could be satisfied on their own right now.
	feasible := make([]int, 0, len(m.compositions))
	for i, counts := range m.compositionCounts {
		if fits(counts, sizeCount) {
			feasible = append(feasible, i)
		}
	}

	assignment := m.findAssignment(feasible, sizeCount)
	if assignment == nil {
		return Skip("Not enough players to form a match")
	}

	// Materialize: walk each chosen composition and take the next waiting
	// entry of each required size, in insertion order.
	taken := make(map[int]int)
	teams := make([][]uuid.UUID, 0, m.numberOfTeams)
	for _, compIdx := range assignment {
		team := make([]uuid.UUID, 0, len(m.compositions[compIdx]))
		for _, size := range m.compositions[compIdx] {
			team = append(team, m.entriesBySize[size][taken[size]])
			taken[size]++
		}
		teams = append(teams, team)
	}

	return Matched(teams)
}

// findAssignment picks numberOfTeams composition indices, with repetition
// and in non-decreasing index order, such that the summed per-size demand
// stays within sizeCount. Returns nil when no assignment exists.
func (m *FlexibleMatchmaker) findAssignment(feasible []int, sizeCount map[int]int) []int {
	remaining := make(map[int]int, len(sizeCount))
	for size, count := range sizeCount {
		remaining[size] = count
	}

	assignment := make([]int, 0, m.numberOfTeams)

	var pick func(teamIdx, fromIdx int) bool
	pick = func(teamIdx, fromIdx int) bool {
		if teamIdx == m.numberOfTeams {
			return true
		}
		for i := fromIdx; i < len(feasible); i++ {
			compIdx := feasible[i]
			counts := m.compositionCounts[compIdx]
			if !fits(counts, remaining) {
				continue
			}
			for size, n := range counts {
				remaining[size] -= n
			}
			assignment = append(assignment, compIdx)

			if pick(teamIdx+1, i) {
				return true
			}

			assignment = assignment[:len(assignment)-1]
			for size, n := range counts {
				remaining[size] += n
			}
		}
		return false
	}

	if !pick(0, 0) {
		return nil
	}
	return assignment
}

func fits(needed, available map[int]int) bool {
	for size, n := range needed {
		if available[size] < n {
			return false
		}
	}
	return true
}

type addendState struct {
	remaining int
	start     int
	combo     []int
}

// FindUniqueAddends enumerates every unordered partition of target into
// positive integers. The explicit LIFO stack makes the order deterministic:
// partitions with larger addends come first, down to all ones. For 5 the
// order is [5] [2 3] [1 4] [1 2 2] [1 1 3] [1 1 1 2] [1 1 1 1 1].
func FindUniqueAddends(target int) ([][]int, error) {
	if target <= 0 {
		return nil, fmt.Errorf("target must be a positive integer, got %d", target)
	}

	var result [][]int
	stack := []addendState{{remaining: target, start: 1}}

	for len(stack) > 0 {
		state := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if state.remaining == 0 {
			result = append(result, state.combo)
			continue
		}

		for i := state.start; i <= state.remaining; i++ {
			combo := make([]int, len(state.combo), len(state.combo)+1)
			copy(combo, state.combo)
			combo = append(combo, i)

			stack = append(stack, addendState{
				remaining: state.remaining - i,
				start:     i,
				combo:     combo,
			})
		}
	}

	return result, nil
}
