package matchmaking

import "errors"

var (
	// Tracker errors
	ErrTrackerLocked = errors.New("QueueTracker is locked")
	ErrQueueNotFound = errors.New("queue not found")
	ErrQueueExists   = errors.New("queue already exists")

	// Queue errors
	ErrEntryNotFound       = errors.New("entry not found")
	ErrEntryExists         = errors.New("entry already exists with that id")
	ErrPlayerAlreadyQueued = errors.New("player is already in this queue")

	// Shape errors reported on add
	ErrNoPlayers           = errors.New("entry has no players")
	ErrMissingElo          = errors.New("entry has no integer elo metadata")
	ErrWrongTeamSize       = errors.New("entry party size does not match the queue team size")
	ErrPartySizeOutOfRange = errors.New("entry party size is outside the allowed range")

	// Construction errors
	ErrInvalidTeamSize    = errors.New("team size must be a positive integer")
	ErrInvalidEntryBounds = errors.New("entry size bounds are invalid")
	ErrInvalidNumTeams    = errors.New("number of teams must be a positive integer")
	ErrInvalidScaling     = errors.New("scaling factor must not be negative")
	ErrInvalidSkillDiff   = errors.New("max skill diff must not be negative")
)
