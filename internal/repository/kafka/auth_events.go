package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NordCoder/pixelpages/internal/domain/kafka"
	"github.com/NordCoder/pixelpages/internal/obs/retry"
)

const HeaderEventType = "event-type"

type AuthEventsKafka struct {
	p *Producer
}

func NewAuthEventsKafka(p *Producer) *AuthEventsKafka { return &AuthEventsKafka{p: p} }

var _ kafka.AuthEvents = (*AuthEventsKafka)(nil)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PublishAuthEvent keys the message by user id so events for one account
// stay ordered within a partition.
func (e *AuthEventsKafka) PublishAuthEvent(ctx context.Context, eventType, key string, payload []byte) error {
	if !json.Valid(payload) {
		return retry.Permanent(fmt.Errorf("auth event %s: payload is not valid json", eventType))
	}
	value, err := json.Marshal(envelope{Type: eventType, Data: payload})
	if err != nil {
		return fmt.Errorf("auth event %s: %w", eventType, err)
	}
	return e.p.Publish(ctx, []byte(key), value, map[string]string{HeaderEventType: eventType})
}
