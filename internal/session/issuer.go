package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"umkm/internal/core"
	"umkm/internal/ports"
)

// Issuer signs tokens for the local backends with HS256.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ ports.TokenIssuer = (*Issuer)(nil)

type claims struct {
	UMKMID string `json:"umkm_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("session secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *Issuer) Issue(umkmID core.ID, email string) (string, error) {
	if umkmID.IsZero() {
		return "", errors.New("cannot issue token without umkm id")
	}
	now := i.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UMKMID: string(umkmID),
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(umkmID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates token and returns the UMKM id it was issued for.
func (i *Issuer) Parse(token string) (core.ID, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}
	if c.UMKMID == "" {
		return "", fmt.Errorf("%w: token carries no umkm id", core.ErrUnauthorized)
	}
	return core.ID(c.UMKMID), nil
}
