package matchmaking

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Matchmaker type names accepted by NewMatchmaker and persisted in
// queues.json. Adding a new algorithm means adding a name here and a case in
// NewMatchmaker; the wire format does not change.
const (
	TypeFlexible = "flexible"
	TypeElo      = "elo"
)

// ResultKind tags the outcome of one matchmaking attempt.
type ResultKind int

const (
	// ResultMatched carries the formed teams as entry id lists.
	ResultMatched ResultKind = iota
	// ResultSkip means no match can be formed right now; retried next tick.
	ResultSkip
	// ResultFail means the matchmaker hit an error. If Affected is non-empty
	// only those entries are ejected, otherwise the whole queue drains.
	ResultFail
)

// Result is the outcome of a single Attempt call.
type Result struct {
	Kind     ResultKind
	Teams    [][]uuid.UUID
	Reason   string
	Err      error
	Affected []uuid.UUID
}

func Matched(teams [][]uuid.UUID) Result {
	return Result{Kind: ResultMatched, Teams: teams}
}

func Skip(reason string) Result {
	return Result{Kind: ResultSkip, Reason: reason}
}

func Fail(err error, affected ...uuid.UUID) Result {
	return Result{Kind: ResultFail, Err: err, Affected: affected}
}

// Matchmaker is the pluggable matching algorithm behind a queue. It owns its
// indexed pool of entries. Implementations are not safe for concurrent use;
// the owning Queue serializes access.
type Matchmaker interface {
	// TypeName returns the constant algorithm name used for serialization.
	TypeName() string

	// Add validates the entry shape and inserts it into the pool.
	Add(entry *Entry) error

	// Remove takes the entry out of the pool, returning ErrEntryNotFound if
	// it is not present.
	Remove(id uuid.UUID) (*Entry, error)

	// RemoveAll drains the pool and returns everything that was in it.
	RemoveAll() []*Entry

	// Get returns the entry without removing it.
	Get(id uuid.UUID) (*Entry, bool)

	// Entries returns a snapshot of the current pool.
	Entries() []*Entry

	// Attempt runs one matchmaking pass. It never mutates the pool: entries
	// referenced by a Matched result are removed later by the Queue once the
	// match is committed.
	Attempt(now time.Time) Result

	// Settings round-trips the algorithm configuration (not the entries).
	Settings() (json.RawMessage, error)
}

// NewMatchmaker builds a matchmaker from its persisted type name and
// settings blob. The logger reaches algorithms that report skipped
// entries; nil is fine.
func NewMatchmaker(typeName string, settings json.RawMessage, logger *zap.Logger) (Matchmaker, error) {
	switch typeName {
	case TypeFlexible:
		return NewFlexibleFromSettings(settings)
	case TypeElo:
		return NewEloFromSettings(settings, logger)
	default:
		return nil, fmt.Errorf("unknown matchmaker type: %s", typeName)
	}
}
