package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"matchmaker-backend/internal/matchmaking"
)

// EventType labels matchmaking lifecycle events published for analytics.
type EventType string

const (
	EventQueueCreated     EventType = "queue_created"
	EventEntryJoinedQueue EventType = "entry_joined_queue"
	EventEntryLeftQueue   EventType = "entry_left_queue"
	EventMatchFound       EventType = "match_found"
)

// Event is the wire format of one analytics message.
type Event struct {
	EventType EventType      `json:"event_type"`
	EventID   string         `json:"event_id"`
	Timestamp time.Time      `json:"timestamp"`
	Queue     string         `json:"queue"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ProducerConfig holds configuration for the Kafka producer.
type ProducerConfig struct {
	Brokers      []string      `json:"brokers"`
	Topic        string        `json:"topic"`
	RequiredAcks int           `json:"required_acks"`
	BatchSize    int           `json:"batch_size"`
	BatchTimeout time.Duration `json:"batch_timeout"`
	Retries      int           `json:"retries"`
}

// DefaultProducerConfig returns a production-ready configuration.
func DefaultProducerConfig(brokers []string, topic string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		Topic:        topic,
		RequiredAcks: 1,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Retries:      3,
	}
}

// Producer writes analytics events asynchronously. Delivery failures are
// logged and never surfaced to the matchmaking path.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewProducer(config ProducerConfig, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		Async:        true,
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		Compression:  kafka.Snappy,
		MaxAttempts:  config.Retries,
	}
	return &Producer{writer: writer, logger: logger}
}

func (p *Producer) Publish(ctx context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to encode analytics event", zap.Error(err))
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Queue),
		Value: value,
	})
	if err != nil {
		p.logger.Warn("failed to publish analytics event",
			zap.String("event_type", string(event.EventType)), zap.Error(err))
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// AnalyticsService provides high-level matchmaking event emission. A nil
// service or a disabled one drops every event.
type AnalyticsService struct {
	producer *Producer
	enabled  bool
}

func NewAnalyticsService(producer *Producer, enabled bool) *AnalyticsService {
	return &AnalyticsService{producer: producer, enabled: enabled}
}

func (s *AnalyticsService) emit(eventType EventType, queue string, payload map[string]any) {
	if s == nil || !s.enabled || s.producer == nil {
		return
	}
	s.producer.Publish(context.Background(), Event{
		EventType: eventType,
		EventID:   uuid.NewString(),
		Timestamp: time.Now(),
		Queue:     queue,
		Payload:   payload,
	})
}

func (s *AnalyticsService) QueueCreated(queue, matchmakerType string) {
	s.emit(EventQueueCreated, queue, map[string]any{"matchmaker": matchmakerType})
}

func (s *AnalyticsService) EntryJoined(queue string, entryID uuid.UUID, players int) {
	s.emit(EventEntryJoinedQueue, queue, map[string]any{
		"entry_id": entryID.String(),
		"players":  players,
	})
}

func (s *AnalyticsService) EntryLeft(queue string, entryID uuid.UUID) {
	s.emit(EventEntryLeftQueue, queue, map[string]any{"entry_id": entryID.String()})
}

func (s *AnalyticsService) MatchFound(record matchmaking.MatchRecord) {
	players := 0
	for _, team := range record.Teams {
		for _, entry := range team {
			players += len(entry.Players)
		}
	}
	s.emit(EventMatchFound, record.Queue, map[string]any{
		"game_id": record.Game.GameID,
		"host":    record.Game.Host,
		"port":    record.Game.Port,
		"teams":   len(record.Teams),
		"players": players,
	})
}
