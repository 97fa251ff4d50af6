// Package domain contains core concepts of the messaging front-end.
// This file defines the authenticated identity and its chat credential.
// Both are supplied by the identity provider and never inspected here.
package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// CredentialPurposeChat is the credential template requested when binding a chat session.
const CredentialPurposeChat = "stream"

// Identity is the authenticated user's stable reference.
// Immutable for the lifetime of a session.
type Identity struct {
	ID          string `json:"id" validate:"required"`
	DisplayName string `json:"name"`
}

// Credential is a short-lived token authorizing a chat session.
type Credential string

func (c Credential) String() string {
	return string(c)
}

var validate = validator.New()

// Validate checks the identity carries a usable id.
func (i Identity) Validate() error {
	return validate.Struct(i)
}

// User returns the chat-side user matching this identity.
func (i Identity) User() User {
	return User{ID: i.ID, Name: i.DisplayName}
}

// AuthTransition is emitted by the identity provider on sign-in and sign-out.
type AuthTransition struct {
	SignedIn bool
	Identity Identity
}

// Session is what a successful sign-in hands back: the identity and its credential.
type Session struct {
	Identity  Identity  `json:"identity"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session token is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
