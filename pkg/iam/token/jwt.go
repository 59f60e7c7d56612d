package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/idfort/idfort/pkg/kernel"
)

// JWTSigner implements Signer using HS256 JWTs, so exchanged tokens can be
// presented as self-describing bearer credentials. The store record remains
// the source of truth for revocation; the JWT only carries claims.
type JWTSigner struct {
	secretKey []byte
	ttl       time.Duration
	issuer    string
	clock     kernel.Clock
}

func NewJWTSigner(secretKey string, ttl time.Duration, issuer string, clock kernel.Clock) *JWTSigner {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	if issuer == "" {
		issuer = "idfort"
	}

	return &JWTSigner{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		issuer:    issuer,
		clock:     clock,
	}
}

// Claims are the JWT claims carried by a signed token.
type Claims struct {
	IdentityID kernel.IdentityID `json:"identity_id"`
	Scopes     []string          `json:"scopes"`
	jwt.RegisteredClaims
}

// Sign renders tok as a compact signed JWT.
func (s *JWTSigner) Sign(tok Token) (string, error) {
	now := s.clock.Now()

	claims := Claims{
		IdentityID: tok.IdentityID,
		Scopes:     tok.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tok.ID.String(),
			Issuer:    s.issuer,
			Subject:   tok.IdentityID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", ErrSigningFailed(err)
	}
	return signed, nil
}

// Parse validates the signature and decodes the claims of a bearer string.
// It does not consult the store; callers still need Service.Validate for
// revocation.
func (s *JWTSigner) Parse(bearer string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(bearer, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.clock.Now))

	if err != nil {
		return nil, ErrTokenNotAuthorized().WithDetail("reason", "bearer parse failed")
	}
	if !parsed.Valid {
		return nil, ErrTokenNotAuthorized()
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrTokenNotAuthorized()
	}
	return claims, nil
}
