package services

import (
	"context"
	"fmt"
	"log/slog"
	"messengy/auth"
	"messengy/contract"
	"messengy/domain"
	"messengy/errors"
	"messengy/infrastructure/storage"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.SignUpRequest) (domain.Session, error)
	Login(ctx context.Context, req auth.SignInRequest) (domain.Session, error)
	Refresh(ctx context.Context, token string) (domain.Session, error)
}

type AuthService struct {
	log            *slog.Logger
	userRepository storage.IUserRepository
	directory      contract.IUserDirectory
	issuer         *auth.TokenIssuer
}

func NewAuthService(log *slog.Logger, repo storage.IUserRepository, directory contract.IUserDirectory,
	issuer *auth.TokenIssuer) IAuthService {
	return &AuthService{log: log, userRepository: repo, directory: directory, issuer: issuer}
}

func (s *AuthService) Register(ctx context.Context, req auth.SignUpRequest) (domain.Session, error) {
	// Checked before any expensive hashing.
	if err := auth.ValidateSignUp(req); err != nil {
		return domain.Session{}, err
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return domain.Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(req.Email, hashedPassword,
		storage.Profile{FirstName: req.FirstName, LastName: req.LastName})
	if err != nil {
		return domain.Session{}, err
	}
	s.log.Info("User registered", "user_id", user.ID)
	return s.open(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req auth.SignInRequest) (domain.Session, error) {
	if err := auth.ValidateSignIn(req); err != nil {
		return domain.Session{}, err
	}

	// Same error for unknown email and wrong password: no user enumeration.
	user, err := s.userRepository.GetUserByEmail(req.Email)
	if err != nil {
		return domain.Session{}, errors.ErrInvalidCredentials
	}
	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return domain.Session{}, errors.ErrInvalidCredentials
	}
	return s.open(ctx, user)
}

// Refresh exchanges a still valid token for a fresh one.
func (s *AuthService) Refresh(ctx context.Context, token string) (domain.Session, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return domain.Session{}, err
	}
	user, err := s.userRepository.GetUserByID(claims.UserID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %w", errors.ErrAuth, err)
	}
	return s.open(ctx, user)
}

// open makes sure the chat backend knows the user, then issues its credential.
func (s *AuthService) open(ctx context.Context, user storage.User) (domain.Session, error) {
	identity := domain.Identity{ID: user.ID, DisplayName: user.DisplayName()}
	if err := s.directory.UpsertUser(ctx, identity.User()); err != nil {
		return domain.Session{}, fmt.Errorf("registering chat user %s: %w", user.ID, err)
	}

	token, expiresAt, err := s.issuer.GenerateToken(user.ID, identity.DisplayName, user.Roles, domain.CredentialPurposeChat)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{Identity: identity, Token: token, ExpiresAt: expiresAt}, nil
}
