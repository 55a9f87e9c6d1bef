package kafka

import "context"

// AuthEvents publishes security notifications for downstream consumers.
type AuthEvents interface {
	PublishAuthEvent(ctx context.Context, eventType, key string, payload []byte) error
}
