package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const (
	eventSource  = "quiz-service"
	eventVersion = "1.0"
)

// Event types emitted by the quiz engine.
const (
	AttemptStarted   = "attempt.started"
	AttemptSubmitted = "attempt.submitted"
	AttemptGraded    = "attempt.graded"
	AnswerGraded     = "answer.graded"
)

// Event is the envelope published to the message broker.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// AttemptEvent is the payload for attempt lifecycle events.
type AttemptEvent struct {
	AttemptID     uint     `json:"attempt_id"`
	QuizID        uint     `json:"quiz_id"`
	StudentID     string   `json:"student_id"`
	AttemptNumber int      `json:"attempt_number"`
	Status        string   `json:"status"`
	EarnedPoints  *float64 `json:"earned_points,omitempty"`
	Percentage    *float64 `json:"percentage,omitempty"`
	IsProvisional bool     `json:"is_provisional"`
	SubmitReason  string   `json:"submit_reason,omitempty"`
}

// AnswerGradedEvent is the payload for manual grading events.
type AnswerGradedEvent struct {
	AnswerID   uint    `json:"answer_id"`
	AttemptID  uint    `json:"attempt_id"`
	QuestionID uint    `json:"question_id"`
	Score      float64 `json:"score"`
	GraderID   string  `json:"grader_id"`
}

// EventPublisher publishes domain events. Publishing failures are reported to
// the caller; services log and continue, they never fail the operation.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
	Close() error
}

// NewEvent builds a fully-populated envelope.
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ===== KAFKA PUBLISHER =====

type KafkaEventPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

// NewKafkaEventPublisher creates a watermill Kafka publisher for the given
// brokers and topic.
func NewKafkaEventPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaEventPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return &KafkaEventPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}, nil
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	event := NewEvent(eventType, data)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("source", event.Source)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}

	p.logger.DebugContext(ctx, "Published event",
		"event_id", event.ID,
		"event_type", event.Type,
		"topic", p.topic)

	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.publisher.Close()
}
