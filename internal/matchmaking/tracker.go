package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTickInterval is how often each queue attempts a match.
const DefaultTickInterval = time.Second

type persistedQueue struct {
	Name     string          `json:"name"`
	Matcher  string          `json:"matcher"`
	Settings json.RawMessage `json:"settings"`
}

// QueueTracker owns every queue in the process. It routes joins, persists
// queue configuration to disk (entries are transient per-client state and
// are never persisted) and drives one tick goroutine per queue. While locked
// for drain, joins are refused but ticks keep running so outstanding clients
// can still be matched.
type QueueTracker struct {
	mu     sync.Mutex
	queues map[string]*Queue
	locked bool

	finder       GameFinder
	logger       *zap.Logger
	file         string
	tickInterval time.Duration
	onMatch      func(MatchRecord)
}

func NewQueueTracker(finder GameFinder, file string, tickInterval time.Duration, logger *zap.Logger) *QueueTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &QueueTracker{
		queues:       make(map[string]*Queue),
		finder:       finder,
		logger:       logger,
		file:         file,
		tickInterval: tickInterval,
	}
}

// OnMatch registers a callback applied to every queue, existing and future.
func (t *QueueTracker) OnMatch(callback func(MatchRecord)) {
	t.mu.Lock()
	t.onMatch = callback
	queues := make([]*Queue, 0, len(t.queues))
	for _, q := range t.queues {
		queues = append(queues, q)
	}
	t.mu.Unlock()

	for _, q := range queues {
		q.OnMatch(callback)
	}
}

// LoadFromFile restores the persisted queue list. A missing file starts the
// tracker empty and creates the file; a corrupt file starts empty with a
// warning; stored queues with an unknown matchmaker type are skipped.
func (t *QueueTracker) LoadFromFile() error {
	data, err := os.ReadFile(t.file)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", t.file, err)
		}
		t.logger.Info("no queue file found, starting with empty QueueTracker",
			zap.String("file", t.file))
		if writeErr := os.WriteFile(t.file, []byte("[]"), 0o644); writeErr != nil {
			t.logger.Warn("failed to create queue file", zap.Error(writeErr))
		}
		return nil
	}

	var stored []persistedQueue
	if err := json.Unmarshal(data, &stored); err != nil {
		t.logger.Warn("failed to parse queue file, starting with empty QueueTracker",
			zap.String("file", t.file), zap.Error(err))
		return nil
	}

	for _, pq := range stored {
		if pq.Name == "" {
			t.logger.Warn("stored queue has no name, skipping")
			continue
		}
		if err := t.CreateQueue(pq.Name, pq.Matcher, pq.Settings, false); err != nil {
			t.logger.Warn("failed to restore queue, skipping",
				zap.String("queue", pq.Name), zap.Error(err))
			continue
		}
		t.logger.Info("loaded queue from file", zap.String("queue", pq.Name))
	}
	return nil
}

// SaveToFile persists the queue configurations as a JSON array.
func (t *QueueTracker) SaveToFile() error {
	t.mu.Lock()
	stored := make([]persistedQueue, 0, len(t.queues))
	for name, q := range t.queues {
		typeName, settings, err := q.MatchmakerType()
		if err != nil {
			t.logger.Warn("failed to serialize matchmaker settings",
				zap.String("queue", name), zap.Error(err))
			continue
		}
		stored = append(stored, persistedQueue{Name: name, Matcher: typeName, Settings: settings})
	}
	t.mu.Unlock()

	sort.Slice(stored, func(i, j int) bool { return stored[i].Name < stored[j].Name })

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue list: %w", err)
	}
	if err := os.WriteFile(t.file, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", t.file, err)
	}
	return nil
}

// CreateQueue registers a new queue and starts its tick loop. With save set,
// the queue list is persisted immediately.
func (t *QueueTracker) CreateQueue(name, matchmakerType string, settings json.RawMessage, save bool) error {
	matchmaker, err := NewMatchmaker(matchmakerType, settings, t.logger)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if _, exists := t.queues[name]; exists {
		t.mu.Unlock()
		return ErrQueueExists
	}
	queue := NewQueue(name, matchmaker, t.finder, t.logger)
	if t.onMatch != nil {
		queue.OnMatch(t.onMatch)
	}
	t.queues[name] = queue
	t.mu.Unlock()

	go t.runTicker(name)
	t.logger.Info("queue created",
		zap.String("queue", name), zap.String("matchmaker", matchmakerType))

	if save {
		if err := t.SaveToFile(); err != nil {
			t.logger.Warn("failed to persist queue list", zap.Error(err))
		}
	}
	return nil
}

// Join admits an entry into the named queue and returns the handle the
// caller waits on. Refused while the tracker is locked for drain.
func (t *QueueTracker) Join(queueName string, entry *Entry) (*ResultHandle, error) {
	t.mu.Lock()
	if t.locked {
		t.mu.Unlock()
		return nil, ErrTrackerLocked
	}
	queue, ok := t.queues[queueName]
	t.mu.Unlock()
	if !ok {
		return nil, ErrQueueNotFound
	}
	return queue.Add(entry)
}

// RemoveEntry cancels a waiting entry without delivering a result.
func (t *QueueTracker) RemoveEntry(queueName string, entryID uuid.UUID) {
	if queue, ok := t.Get(queueName); ok {
		queue.RemoveEntry(entryID)
	}
}

// Get returns the named queue.
func (t *QueueTracker) Get(name string) (*Queue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	queue, ok := t.queues[name]
	return queue, ok
}

// List returns the queues sorted by name.
func (t *QueueTracker) List() []*Queue {
	t.mu.Lock()
	queues := make([]*Queue, 0, len(t.queues))
	for _, q := range t.queues {
		queues = append(queues, q)
	}
	t.mu.Unlock()

	sort.Slice(queues, func(i, j int) bool { return queues[i].Name < queues[j].Name })
	return queues
}

// Lock puts the tracker into drain mode: new joins fail immediately while
// ticks keep servicing entries already queued.
func (t *QueueTracker) Lock() {
	t.mu.Lock()
	t.locked = true
	t.mu.Unlock()
	t.logger.Info("QueueTracker locked, refusing new joins")
}

// Locked reports whether the tracker is in drain mode.
func (t *QueueTracker) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locked
}

// AllQueuesEmpty reports whether every queue has drained.
func (t *QueueTracker) AllQueuesEmpty() bool {
	for _, queue := range t.List() {
		if !queue.Empty() {
			return false
		}
	}
	return true
}

// Drain blocks until every queue is empty or the context expires, persisting
// the queue list once per poll so configuration survives the shutdown.
func (t *QueueTracker) Drain(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if t.AllQueuesEmpty() {
			t.logger.Info("all queues are empty, proceeding with shutdown")
			return t.SaveToFile()
		}
		if err := t.SaveToFile(); err != nil {
			t.logger.Warn("failed to persist queue list during drain", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runTicker drives the queue's matchmaking at the tracker's interval. It
// holds only the queue name, so when the queue disappears from the registry
// the loop observes the miss and exits.
func (t *QueueTracker) runTicker(name string) {
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for range ticker.C {
		queue, ok := t.Get(name)
		if !ok {
			return
		}
		queue.Tick(context.Background())
	}
}
