package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "lexguard/pkg/domain"
)

// Claims are the JWT claims carried by session tokens.
type Claims struct {
	SessionID string `json:"session_id"`
	Scope     string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenService mints and validates session bearer tokens (HS256). Validation
// here only covers the token itself; lifecycle checks live in the session
// service, which always reads the store.
type TokenService struct {
	signingKey []byte
	issuer     string
}

func NewTokenService(signingKey string, issuer string) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), issuer: issuer}
}

// Generate mints a signed token for the session and returns it with its
// SHA-256 digest for storage.
func (s *TokenService) Generate(sessionID id.SessionID, scope Scope, issuedAt, expiresAt time.Time) (token string, digest string, err error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID.String(),
		Scope:     string(scope),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	token, err = t.SignedString(s.signingKey)
	if err != nil {
		return "", "", err
	}
	return token, Digest(token), nil
}

// Validate parses and verifies the token signature and returns its claims.
// All failures collapse into ErrSessionInvalid so callers cannot distinguish
// a malformed token from an expired one.
func (s *TokenService) Validate(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.Join(ErrSessionInvalid, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}

// Digest returns the hex SHA-256 of a token for at-rest storage.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
