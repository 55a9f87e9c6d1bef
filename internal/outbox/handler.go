package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/pixelpages/internal/domain/kafka"
	"github.com/NordCoder/pixelpages/internal/domain/outbox"
	"github.com/NordCoder/pixelpages/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle", trace.WithAttributes(attribute.String("outbox.kind", kind)))
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}

// userKey pulls the partition key out of any auth payload.
type userKey struct {
	UserID string `json:"user_id"`
}

func relay(pub kafka.AuthEvents, kind outbox.Kind) outbox.KindHandler {
	return func(ctx context.Context, data []byte) error {
		var k userKey
		if err := json.Unmarshal(data, &k); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal %s payload: %w", kind, err))
		}
		if k.UserID == "" {
			return retry.Permanent(fmt.Errorf("%s payload without user_id", kind))
		}
		return pub.PublishAuthEvent(ctx, kind.String(), k.UserID, data)
	}
}

func MakeGlobalOutboxHandler(pub kafka.AuthEvents, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindUserRegistered, outbox.KindPasswordChanged, outbox.KindSessionsRevoked:
			return instrument(kind.String(), relay(pub, kind), pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}
