package sweeper

import (
	"context"
	"fmt"
	"time"

	domainauth "github.com/NordCoder/pixelpages/internal/domain/auth"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Usecase deletes refresh-token records whose expiry has passed. Records
// expiring exactly at now are left for the next tick.
type Usecase struct {
	Tokens domainauth.RefreshTokenRepo
	Now    func() time.Time
}

func NewUC(tokens domainauth.RefreshTokenRepo, now func() time.Time) *Usecase {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Usecase{Tokens: tokens, Now: now}
}

func (u *Usecase) Tick(ctx context.Context) (int64, error) {
	now := u.Now()
	ctx, span := otel.Tracer("sweeper.uc").Start(ctx, "sweeper.tick",
		trace.WithAttributes(attribute.String("sweep.before", now.Format(time.RFC3339))),
	)
	defer span.End()

	n, err := u.Tokens.PurgeExpired(ctx, now)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	span.SetAttributes(attribute.Int64("sweep.purged", n))
	return n, nil
}
