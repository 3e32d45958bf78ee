// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims binds a websocket session to one seat in one room.
type SessionClaims struct {
	Room string `json:"room"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies EdDSA session tokens.
type Issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration // 0 => tokens never expire
}

// NewIssuer generates a fresh ed25519 key pair. Tokens do not survive a
// restart, and neither do the rooms they point at.
func NewIssuer(ttl time.Duration) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// ParseTTL reads a TOKEN_EXPIRE_TIME value. "", "0" and "never" disable expiry.
func ParseTTL(s string) (time.Duration, error) {
	if s == "" || s == "0" || s == "never" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// Issue returns a token with sub = playerID for the given room.
func (i *Issuer) Issue(playerID uuid.UUID, room, name string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Room: room,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  playerID.String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(i.privateKey)
}

// Verify checks the signature and expiry and returns the player id and claims.
func (i *Issuer) Verify(tokenString string) (uuid.UUID, *SessionClaims, error) {
	claims := &SessionClaims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	})
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return uuid.Nil, nil, ErrInvalidToken
	}
	playerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return playerID, claims, nil
}
