package errors

import "fmt"

// Taxonomy surfaced by the session and channel layers.
// Wrapped causes keep their own identity: test with errors.Is against both.
var (
	ErrAuth          = fmt.Errorf("authentication failed")
	ErrConnection    = fmt.Errorf("chat connection failed")
	ErrNotConnected  = fmt.Errorf("chat session not connected")
	ErrChannelCreate = fmt.Errorf("channel creation failed")
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrSignedOut          = fmt.Errorf("no signed in identity")
)

var (
	ErrChannelNotFound  = fmt.Errorf("channel not found")
	ErrInvalidMember    = fmt.Errorf("invalid channel member")
	ErrDuplicateChannel = fmt.Errorf("channel already exists")
	ErrEmptyQuery       = fmt.Errorf("empty search query")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrEmptyWords       = fmt.Errorf("no censored word loaded")
)
