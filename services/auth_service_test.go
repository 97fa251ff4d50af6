package services

import (
	"context"
	"log/slog"
	"messengy/auth"
	"messengy/domain"
	"messengy/errors"
	"messengy/infrastructure/storage"
	"messengy/mocks"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	mockDirectory := mocks.NewMockIUserDirectory(ctrl)
	issuer := auth.NewTokenIssuer("secret", 24*time.Hour)
	svc := NewAuthService(slog.Default(), mockRepo, mockDirectory, issuer)
	ctx := context.Background()

	t.Run("should register and open a chat session when input is valid", func(t *testing.T) {
		req := require.New(t)
		email := "test@example.com"

		// Given the repository stores the user with a hashed password
		mockRepo.EXPECT().
			CreateUser(email, gomock.Not("ComplexPass123!"), storage.Profile{FirstName: "Ada", LastName: "Lovelace"}).
			Return(storage.User{ID: "user-uuid", Email: email, Profile: storage.Profile{FirstName: "Ada", LastName: "Lovelace"}, Roles: []string{"user"}}, nil).
			Times(1)
		// And the chat backend learns about the user
		mockDirectory.EXPECT().
			UpsertUser(gomock.Any(), domain.User{ID: "user-uuid", Name: "Ada Lovelace"}).
			Return(nil).
			Times(1)

		// When registering
		session, err := svc.Register(ctx, auth.SignUpRequest{Email: email, Password: "ComplexPass123!", FirstName: "Ada", LastName: "Lovelace"})

		// Then the credential is bound to the new user
		req.NoError(err)
		req.Equal(domain.Identity{ID: "user-uuid", DisplayName: "Ada Lovelace"}, session.Identity)
		claims, err := issuer.Validate(session.Token)
		req.NoError(err)
		req.Equal("user-uuid", claims.UserID)
		req.Equal(domain.CredentialPurposeChat, claims.Purpose)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		session, err := svc.Register(ctx, auth.SignUpRequest{Email: "test@example.com", Password: "simple"})

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(session.Token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("duplicate@example.com", gomock.Any(), gomock.Any()).
			Return(storage.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register(ctx, auth.SignUpRequest{Email: "duplicate@example.com", Password: "ComplexPass123!"})

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	mockDirectory := mocks.NewMockIUserDirectory(ctrl)
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	svc := NewAuthService(slog.Default(), mockRepo, mockDirectory, issuer)
	ctx := context.Background()

	hashedPassword, err := auth.HashPassword("Secret123456!")
	require.NoError(t, err)
	storedUser := storage.User{ID: "uuid-123", Email: "user@example.com", PasswordHash: hashedPassword, Roles: []string{"user"}}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().GetUserByEmail("user@example.com").Return(storedUser, nil).Times(1)
		mockDirectory.EXPECT().UpsertUser(gomock.Any(), domain.User{ID: "uuid-123", Name: "user"}).Return(nil).Times(1)

		session, err := svc.Login(ctx, auth.SignInRequest{Email: "user@example.com", Password: "Secret123456!"})

		req.NoError(err)
		claims, err := issuer.Validate(session.Token)
		req.NoError(err)
		req.Equal(storedUser.ID, claims.UserID)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().GetUserByEmail("user@example.com").Return(storedUser, nil).Times(1)

		_, err := svc.Login(ctx, auth.SignInRequest{Email: "user@example.com", Password: "WrongPassword123!"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().GetUserByEmail("unknown@example.com").Return(storage.User{}, errors.ErrUserNotFound).Times(1)

		_, err := svc.Login(ctx, auth.SignInRequest{Email: "unknown@example.com", Password: "anyPassword"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	mockDirectory := mocks.NewMockIUserDirectory(ctrl)
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	svc := NewAuthService(slog.Default(), mockRepo, mockDirectory, issuer)
	ctx := context.Background()

	t.Run("should issue a new token for a valid one", func(t *testing.T) {
		req := require.New(t)
		token, _, err := issuer.GenerateToken("uuid-123", "", nil, domain.CredentialPurposeChat)
		req.NoError(err)

		mockRepo.EXPECT().GetUserByID("uuid-123").Return(storage.User{ID: "uuid-123", Email: "grace@example.com"}, nil).Times(1)
		mockDirectory.EXPECT().UpsertUser(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		session, err := svc.Refresh(ctx, token)

		req.NoError(err)
		req.Equal(domain.Identity{ID: "uuid-123", DisplayName: "grace"}, session.Identity)
	})

	t.Run("should reject a forged token", func(t *testing.T) {
		req := require.New(t)

		_, err := svc.Refresh(ctx, "forged")

		req.ErrorIs(err, errors.ErrAuth)
	})
}
