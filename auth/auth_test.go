package auth

import (
	"context"
	"messengy/domain"
	"messengy/errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MyP4ssword-is-Strong!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)

	_, err = ComparePassword(password, "$bcrypt$whatever")
	req.ErrorIs(err, errInvalidHash)
}

func TestSignUpValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     SignUpRequest
		wantErr bool
	}{
		{"Valid request", SignUpRequest{Email: "test@example.com", Password: "ComplexPass123!"}, false},
		{"Invalid email", SignUpRequest{Email: "notanemail", Password: "ComplexPass123!"}, true},
		{"Password too short", SignUpRequest{Email: "test@example.com", Password: "Short1!"}, true},
		{"Missing digit", SignUpRequest{Email: "test@example.com", Password: "NoDigitPass!"}, true},
		{"Missing special char", SignUpRequest{Email: "test@example.com", Password: "NoSpecialChar123"}, true},
		{"Missing uppercase", SignUpRequest{Email: "test@example.com", Password: "nouppercase123!"}, true},
		{"Password too long", SignUpRequest{Email: "test@example.com", Password: strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignUp(tt.req)
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrInvalidPassword)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSignInValidation(t *testing.T) {
	req := require.New(t)
	req.NoError(ValidateSignIn(SignInRequest{Email: "a@example.com", Password: "x"}))
	req.ErrorIs(ValidateSignIn(SignInRequest{Email: "a@example.com"}), errors.ErrInvalidCredentials)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	t.Run("should issue a credential bound to the identity", func(t *testing.T) {
		req := require.New(t)
		credential, err := issuer.Issue(context.Background(), domain.Identity{ID: "u1", DisplayName: "Ada"}, domain.CredentialPurposeChat)
		req.NoError(err)

		claims, err := issuer.Validate(credential.String())
		req.NoError(err)
		req.Equal("u1", claims.UserID)
		req.Equal("Ada", claims.Name)
		req.Equal(domain.CredentialPurposeChat, claims.Purpose)

		userID, err := issuer.Verify(credential)
		req.NoError(err)
		req.Equal("u1", userID)
	})

	t.Run("should reject a credential signed with another secret", func(t *testing.T) {
		req := require.New(t)
		token, _, err := NewTokenIssuer("other", time.Hour).GenerateToken("u1", "", nil, "")
		req.NoError(err)

		_, err = issuer.Validate(token)
		req.ErrorIs(err, errors.ErrAuth)
	})

	t.Run("should reject an expired credential", func(t *testing.T) {
		req := require.New(t)
		expired := NewTokenIssuer("secret", time.Minute)
		expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := expired.GenerateToken("u1", "", nil, "")
		req.NoError(err)

		_, err = issuer.Validate(token)
		req.ErrorIs(err, errors.ErrAuth)
	})
}

func TestMiddlewares(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	var seen string
	handler := RequireKey(HeaderAPIKey, "api-key")(RequireToken(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFrom(r.Context())
		seen = claims.UserID
		w.WriteHeader(http.StatusNoContent)
	})))
	token, _, err := issuer.GenerateToken("u1", "Ada", nil, "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		apiKey string
		bearer string
		want   int
	}{
		{"missing api key", "", token, http.StatusUnauthorized},
		{"wrong api key", "nope", token, http.StatusUnauthorized},
		{"missing token", "api-key", "", http.StatusUnauthorized},
		{"invalid token", "api-key", "garbage", http.StatusUnauthorized},
		{"valid request", "api-key", token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/unread", nil)
			if tt.apiKey != "" {
				r.Header.Set(HeaderAPIKey, tt.apiKey)
			}
			if tt.bearer != "" {
				r.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			require.Equal(t, tt.want, w.Code)
		})
	}
	require.Equal(t, "u1", seen)
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
