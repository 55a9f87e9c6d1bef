package retry

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultKafkaPolicy makes up to six attempts with jittered backoff for
// relaying auth events. Cancellation and broker errors kafka-go marks as
// non-temporary are final.
func DefaultKafkaPolicy(log *zap.Logger) Policy {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("policy", "kafka_publish"))
	return Policy{
		Name:      "kafka_publish",
		Attempts:  6,
		Backoff:   ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: kafkaRetryable,
		OnAttempt: func(i int, err error) {
			log.Warn("auth event publish retry", zap.Int("attempt", i+1), zap.Error(err))
		},
		OnExhaust: func(err error) {
			if !errors.Is(err, context.Canceled) {
				log.Error("auth event publish gave up", zap.Error(err))
			}
		},
	}
}

func kafkaRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	return true
}
