package auth

import (
	"context"
	"fmt"
	"messengy/domain"
	"messengy/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuerName = "messengy"

// Claims is the payload of a chat credential. UserID is the only claim the chat
// backend relies on: it must match the identity the connection is opened for.
type Claims struct {
	UserID  string   `json:"user_id"`
	Name    string   `json:"name,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	Purpose string   `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 credentials with a shared secret.
type TokenIssuer struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokenIssuer(secret string, duration time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), duration: duration, now: time.Now}
}

// GenerateToken creates a signed credential for a user.
func (t *TokenIssuer) GenerateToken(userID, name string, roles []string, purpose string) (string, time.Time, error) {
	issuedAt := t.now()
	expiresAt := issuedAt.Add(t.duration)
	claims := &Claims{
		UserID:  userID,
		Name:    name,
		Roles:   roles,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    issuerName,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %w", errors.ErrTokenGeneration, err)
	}
	return signed, expiresAt, nil
}

// Issue hands out a credential for identity, so the issuer can back an identity provider
// without any network round trip.
func (t *TokenIssuer) Issue(_ context.Context, identity domain.Identity, purpose string) (domain.Credential, error) {
	token, _, err := t.GenerateToken(identity.ID, identity.DisplayName, []string{"user"}, purpose)
	if err != nil {
		return "", err
	}
	return domain.Credential(token), nil
}

// Validate parses token, checking its signature, algorithm and expiration.
func (t *TokenIssuer) Validate(token string) (*Claims, error) {
	return ValidateToken(t.secret, token)
}

// Verify returns the user a chat credential was issued for.
func (t *TokenIssuer) Verify(credential domain.Credential) (string, error) {
	claims, err := t.Validate(credential.String())
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func ValidateToken(secret []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuerName))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrAuth, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: %w", errors.ErrAuth, jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}
