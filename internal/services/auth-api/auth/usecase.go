package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	authn "github.com/NordCoder/pixelpages/internal/auth"
	"github.com/NordCoder/pixelpages/internal/domain"
	domainauth "github.com/NordCoder/pixelpages/internal/domain/auth"
	"github.com/NordCoder/pixelpages/internal/domain/outbox"
	"github.com/NordCoder/pixelpages/internal/domain/user"
	"github.com/NordCoder/pixelpages/internal/obs"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	ReasonLogoutAll   = "logout_all"
	ReasonDeactivated = "deactivated"
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

type Deps struct {
	Tx     Transactor
	Users  user.Repo
	Tokens domainauth.RefreshTokenRepo
	Outbox outbox.Repository
	Hasher *authn.PasswordHasher
	Codec  *authn.TokenCodec
}

// Session is what a successful login hands back to the transport.
type Session struct {
	User             *user.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type AccessGrant struct {
	AccessToken string
	ExpiresAt   time.Time
}

type Usecase struct {
	log      *zap.Logger
	tx       Transactor
	users    user.Repo
	tokens   domainauth.RefreshTokenRepo
	outbox   outbox.Repository
	hasher   *authn.PasswordHasher
	codec    *authn.TokenCodec
	resolver *Resolver
	cfg      Config
	tr       trace.Tracer
}

func NewUseCase(log *zap.Logger, d Deps, cfg Config) *Usecase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{
		log:      log,
		tx:       d.Tx,
		users:    d.Users,
		tokens:   d.Tokens,
		outbox:   d.Outbox,
		hasher:   d.Hasher,
		codec:    d.Codec,
		resolver: NewResolver(d.Codec, d.Users, d.Tokens, cfg.Now),
		cfg:      cfg,
		tr:       otel.Tracer("auth.usecase"),
	}
}

func (u *Usecase) Resolver() *Resolver { return u.resolver }

func (u *Usecase) RefreshTTL() time.Duration { return u.cfg.RefreshTTL }

func (u *Usecase) Register(ctx context.Context, email, password string, fullName *string) (_ *user.User, err error) {
	ctx, span := u.tr.Start(ctx, "auth.register")
	defer func() { finish(span, err) }()

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword("password", password); err != nil {
		return nil, err
	}
	name, err := normalizeFullName(fullName)
	if err != nil {
		return nil, err
	}

	hash, err := u.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	nu := &user.User{Email: email, PasswordHash: hash, FullName: name, IsActive: true}
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := u.users.Create(ctx, nu); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return ErrDuplicateEmail
			}
			return err
		}
		return u.emit(ctx, outbox.KindUserRegistered, outbox.UserRegisteredPayload{
			UserID: nu.ID, Email: nu.Email, At: u.cfg.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", nu.ID.String()))
	obs.WithTrace(ctx, u.log).Info("auth.register", zap.String("user_id", nu.ID.String()), zap.String("email", nu.Email))
	return nu, nil
}

// Login answers every failure with ErrInvalidCredentials: unknown email,
// wrong password and inactive account are indistinguishable to the caller.
func (u *Usecase) Login(ctx context.Context, email, password string) (_ *Session, err error) {
	ctx, span := u.tr.Start(ctx, "auth.login")
	defer func() { finish(span, err) }()

	email = normalizeEmail(email)
	usr, err := u.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		u.hasher.VerifyNothing(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !u.hasher.Verify(password, usr.PasswordHash) || !usr.IsActive {
		return nil, ErrInvalidCredentials
	}

	access, ac, err := u.codec.IssueAccess(usr.ID, u.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	refresh, rc, err := u.codec.IssueRefresh(usr.ID, u.cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if _, err := u.tokens.Put(ctx, refresh, usr.ID, rc.IssuedAt, rc.ExpiresAt); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, ErrDuplicateToken
		}
		return nil, fmt.Errorf("login: store refresh token: %w", err)
	}

	obs.WithTrace(ctx, u.log).Info("auth.login", zap.String("user_id", usr.ID.String()), zap.String("email", usr.Email))
	return &Session{
		User:             usr,
		AccessToken:      access,
		AccessExpiresAt:  ac.ExpiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: rc.ExpiresAt,
	}, nil
}

// Refresh issues a new access token for a live refresh token. The refresh
// token itself is not rotated.
func (u *Usecase) Refresh(ctx context.Context, refreshToken string) (_ *AccessGrant, err error) {
	ctx, span := u.tr.Start(ctx, "auth.refresh")
	defer func() { finish(span, err) }()

	claims, err := u.resolver.ResolveRefresh(ctx, refreshToken)
	if err != nil {
		return nil, u.unauthenticated(ctx, err)
	}
	usr, err := u.users.GetByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !usr.IsActive {
		return nil, ErrUnauthenticated
	}

	access, ac, err := u.codec.IssueAccess(usr.ID, u.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return &AccessGrant{AccessToken: access, ExpiresAt: ac.ExpiresAt}, nil
}

// Logout revokes the presented refresh token. Losing a race against another
// revocation of the same token still counts as success.
func (u *Usecase) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, span := u.tr.Start(ctx, "auth.logout")
	defer func() { finish(span, err) }()

	claims, err := u.resolver.ResolveRefresh(ctx, refreshToken)
	if err != nil {
		return u.unauthenticated(ctx, err)
	}
	revoked, err := u.tokens.Revoke(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	obs.WithTrace(ctx, u.log).Info("auth.logout",
		zap.String("user_id", claims.Subject.String()), zap.Bool("revoked", revoked))
	return nil
}

// LogoutAll revokes the caller's refresh tokens that are active right now.
// A login racing with it may leave one new token active.
func (u *Usecase) LogoutAll(ctx context.Context, accessToken string) (_ int64, err error) {
	ctx, span := u.tr.Start(ctx, "auth.logout_all")
	defer func() { finish(span, err) }()

	usr, err := u.authenticate(ctx, accessToken)
	if err != nil {
		return 0, err
	}

	var revoked int64
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		n, err := u.revokeAll(ctx, usr.ID, ReasonLogoutAll)
		revoked = n
		return err
	})
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int64("tokens.revoked", revoked))
	obs.WithTrace(ctx, u.log).Info("auth.logout_all",
		zap.String("user_id", usr.ID.String()), zap.Int64("revoked", revoked))
	return revoked, nil
}

func (u *Usecase) Me(ctx context.Context, accessToken string) (_ *user.User, err error) {
	ctx, span := u.tr.Start(ctx, "auth.me")
	defer func() { finish(span, err) }()

	return u.authenticate(ctx, accessToken)
}

// ChangePassword replaces the hash and revokes every refresh token of the
// caller in one transaction. A wrong old password changes nothing. The update
// is conditional on the hash the old password was checked against, so of two
// concurrent changes from the same old password only one wins.
func (u *Usecase) ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) (_ int64, err error) {
	ctx, span := u.tr.Start(ctx, "auth.change_password")
	defer func() { finish(span, err) }()

	usr, err := u.authenticate(ctx, accessToken)
	if err != nil {
		return 0, err
	}
	if !u.hasher.Verify(oldPassword, usr.PasswordHash) {
		return 0, ErrIncorrectPassword
	}
	if err := validatePassword("new_password", newPassword); err != nil {
		return 0, err
	}
	hash, err := u.hasher.Hash(newPassword)
	if err != nil {
		return 0, fmt.Errorf("change password: %w", err)
	}

	var revoked int64
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := u.users.UpdatePassword(ctx, usr.ID, usr.PasswordHash, hash); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return ErrUserNotFound
			case errors.Is(err, domain.ErrConflict):
				return ErrIncorrectPassword
			}
			return err
		}
		n, err := u.tokens.RevokeAll(ctx, usr.ID, u.cfg.Now())
		if err != nil {
			return err
		}
		revoked = n
		return u.emit(ctx, outbox.KindPasswordChanged, outbox.PasswordChangedPayload{
			UserID: usr.ID, Email: usr.Email, Revoked: n, At: u.cfg.Now(),
		})
	})
	if err != nil {
		return 0, err
	}

	obs.WithTrace(ctx, u.log).Info("auth.change_password",
		zap.String("user_id", usr.ID.String()), zap.Int64("revoked", revoked))
	return revoked, nil
}

// SetActive is restricted to superusers. Deactivation also revokes the
// target's refresh tokens.
func (u *Usecase) SetActive(ctx context.Context, accessToken string, target uuid.UUID, active bool) (_ *user.User, err error) {
	ctx, span := u.tr.Start(ctx, "auth.set_active",
		trace.WithAttributes(attribute.String("target.id", target.String()), attribute.Bool("active", active)))
	defer func() { finish(span, err) }()

	caller, err := u.authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if !caller.IsSuperuser {
		return nil, ErrForbidden
	}

	var updated *user.User
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		res, err := u.users.SetActive(ctx, target, active)
		if errors.Is(err, domain.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		updated = res
		if active {
			return nil
		}
		_, err = u.revokeAll(ctx, target, ReasonDeactivated)
		return err
	})
	if err != nil {
		return nil, err
	}

	obs.WithTrace(ctx, u.log).Info("auth.set_active",
		zap.String("caller_id", caller.ID.String()),
		zap.String("user_id", target.String()),
		zap.Bool("active", active))
	return updated, nil
}

func (u *Usecase) authenticate(ctx context.Context, accessToken string) (*user.User, error) {
	usr, err := u.resolver.ResolveAccess(ctx, accessToken)
	if err != nil {
		return nil, u.unauthenticated(ctx, err)
	}
	return usr, nil
}

// unauthenticated collapses resolver failures into the single public error
// and lets store failures through untouched.
func (u *Usecase) unauthenticated(ctx context.Context, err error) error {
	if KindOf(err) != KindAuthentication {
		return err
	}
	obs.WithTrace(ctx, u.log).Debug("auth rejected", zap.Error(err))
	return ErrUnauthenticated
}

func (u *Usecase) revokeAll(ctx context.Context, userID uuid.UUID, reason string) (int64, error) {
	now := u.cfg.Now()
	n, err := u.tokens.RevokeAll(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, u.emit(ctx, outbox.KindSessionsRevoked, outbox.SessionsRevokedPayload{
		UserID: userID, Reason: reason, Revoked: n, At: now,
	})
}

func (u *Usecase) emit(ctx context.Context, kind outbox.Kind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	return u.outbox.Enqueue(ctx, uuid.NewString(), kind, data)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	span.End()
}
