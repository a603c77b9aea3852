package events

//go:generate go run go.uber.org/mock/mockgen@latest -source=publisher.go -destination=mocks_test.go -package=events

import (
	"context"
	"time"
	"voice-assistant/internal/clients/kafka"
	"voice-assistant/internal/observability"

	"github.com/google/uuid"
)

const (
	TypeCallAuthenticated = "call.authenticated"
	TypeTurnCompleted     = "call.turn_completed"
)

// EventProducer is the transport the publisher writes to.
type EventProducer interface {
	PublishEvent(ctx context.Context, event kafka.EventMessage) error
}

// Publisher handles publishing call events to Kafka
type Publisher struct {
	producer EventProducer
	logger   *observability.Logger
	now      func() time.Time
}

// NewPublisher creates a new event publisher. A nil producer turns every publish into a no-op.
func NewPublisher(producer EventProducer, logger *observability.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Publisher) publish(ctx context.Context, eventType, callSID string, data map[string]interface{}) {
	if p == nil || p.producer == nil {
		return
	}

	event := kafka.EventMessage{
		ID:        uuid.New().String(),
		Type:      eventType,
		CallSID:   callSID,
		Data:      data,
		Timestamp: p.now().UTC().Format(time.RFC3339),
	}
	if err := p.producer.PublishEvent(ctx, event); err != nil {
		p.logger.Error(ctx, "failed to publish call event", err)
	}
}

// PublishCallAuthenticated publishes a call.authenticated event
func (p *Publisher) PublishCallAuthenticated(ctx context.Context, callSID, userID string) {
	p.publish(ctx, TypeCallAuthenticated, callSID, map[string]interface{}{
		"user_id": userID,
	})
}

// PublishTurnCompleted publishes a call.turn_completed event
func (p *Publisher) PublishTurnCompleted(ctx context.Context, callSID, languageCode string, turn int) {
	p.publish(ctx, TypeTurnCompleted, callSID, map[string]interface{}{
		"language_code": languageCode,
		"turn":          turn,
	})
}
