package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

type Kind int

const (
	KindUserRegistered  Kind = 1
	KindPasswordChanged Kind = 2
	KindSessionsRevoked Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindUserRegistered:
		return "user.registered"
	case KindPasswordChanged:
		return "user.password_changed"
	case KindSessionsRevoked:
		return "user.sessions_revoked"
	default:
		return "unknown"
	}
}

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

// Payloads carried in Message.Data as JSON.

type UserRegisteredPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}

type PasswordChangedPayload struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email"`
	Revoked int64     `json:"revoked_tokens"`
	At      time.Time `json:"at"`
}

type SessionsRevokedPayload struct {
	UserID  uuid.UUID `json:"user_id"`
	Reason  string    `json:"reason"` // logout_all, deactivated
	Revoked int64     `json:"revoked_tokens"`
	At      time.Time `json:"at"`
}

type Repository interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
