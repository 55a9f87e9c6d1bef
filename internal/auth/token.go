package auth

import (
	"errors"
	"fmt"
	"time"

	domainauth "github.com/NordCoder/pixelpages/internal/domain/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLen is the shortest HS256 secret the codec accepts.
const MinSecretLen = 32

// ErrInvalidToken is the only verification failure. Bad signatures, wrong
// token types, malformed payloads and expired tokens are indistinguishable.
var ErrInvalidToken = errors.New("invalid token")

var ErrWeakSecret = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLen)

type wireClaims struct {
	jwt.RegisteredClaims
	Type domainauth.TokenType `json:"type"`
}

// TokenCodec signs and verifies HS256 tokens with a process-wide secret.
// Rotating the secret invalidates every outstanding token.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

func NewTokenCodec(secret []byte, now func() time.Time) (*TokenCodec, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{secret: key, now: now}, nil
}

func (c *TokenCodec) IssueAccess(sub uuid.UUID, ttl time.Duration) (string, domainauth.AccessClaims, error) {
	iat, exp := c.window(ttl)
	wc := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.String(),
			IssuedAt:  iat,
			ExpiresAt: exp,
		},
		Type: domainauth.TokenAccess,
	}
	signed, err := c.sign(wc)
	if err != nil {
		return "", domainauth.AccessClaims{}, err
	}
	return signed, domainauth.AccessClaims{
		Subject:   sub,
		Type:      domainauth.TokenAccess,
		IssuedAt:  iat.Time.UTC(),
		ExpiresAt: exp.Time.UTC(),
	}, nil
}

func (c *TokenCodec) IssueRefresh(sub uuid.UUID, ttl time.Duration) (string, domainauth.RefreshClaims, error) {
	jti, err := uuid.NewRandom()
	if err != nil {
		return "", domainauth.RefreshClaims{}, fmt.Errorf("generate jti: %w", err)
	}
	iat, exp := c.window(ttl)
	wc := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.String(),
			ID:        jti.String(),
			IssuedAt:  iat,
			ExpiresAt: exp,
		},
		Type: domainauth.TokenRefresh,
	}
	signed, err := c.sign(wc)
	if err != nil {
		return "", domainauth.RefreshClaims{}, err
	}
	return signed, domainauth.RefreshClaims{
		Subject:   sub,
		Type:      domainauth.TokenRefresh,
		ID:        jti,
		IssuedAt:  iat.Time.UTC(),
		ExpiresAt: exp.Time.UTC(),
	}, nil
}

func (c *TokenCodec) VerifyAccess(token string) (*domainauth.AccessClaims, error) {
	wc, sub, err := c.verify(token, domainauth.TokenAccess)
	if err != nil {
		return nil, err
	}
	if wc.ID != "" {
		return nil, ErrInvalidToken
	}
	return &domainauth.AccessClaims{
		Subject:   sub,
		Type:      wc.Type,
		IssuedAt:  wc.IssuedAt.Time.UTC(),
		ExpiresAt: wc.ExpiresAt.Time.UTC(),
	}, nil
}

func (c *TokenCodec) VerifyRefresh(token string) (*domainauth.RefreshClaims, error) {
	wc, sub, err := c.verify(token, domainauth.TokenRefresh)
	if err != nil {
		return nil, err
	}
	jti, err := uuid.Parse(wc.ID)
	if err != nil || jti == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return &domainauth.RefreshClaims{
		Subject:   sub,
		Type:      wc.Type,
		ID:        jti,
		IssuedAt:  wc.IssuedAt.Time.UTC(),
		ExpiresAt: wc.ExpiresAt.Time.UTC(),
	}, nil
}

// verify checks the signature, then the type tag, then expiry.
func (c *TokenCodec) verify(token string, want domainauth.TokenType) (*wireClaims, uuid.UUID, error) {
	var wc wireClaims
	_, err := jwt.ParseWithClaims(token, &wc, func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, uuid.Nil, ErrInvalidToken
	}
	if wc.Type != want {
		return nil, uuid.Nil, ErrInvalidToken
	}
	if wc.ExpiresAt == nil || wc.IssuedAt == nil || !c.now().Before(wc.ExpiresAt.Time) {
		return nil, uuid.Nil, ErrInvalidToken
	}
	sub, err := uuid.Parse(wc.Subject)
	if err != nil || sub == uuid.Nil {
		return nil, uuid.Nil, ErrInvalidToken
	}
	return &wc, sub, nil
}

func (c *TokenCodec) window(ttl time.Duration) (iat, exp *jwt.NumericDate) {
	now := c.now()
	return jwt.NewNumericDate(now), jwt.NewNumericDate(now.Add(ttl))
}

func (c *TokenCodec) sign(wc wireClaims) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wc).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", wc.Type, err)
	}
	return s, nil
}
