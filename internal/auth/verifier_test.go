package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mealplan/internal/auth"
	"github.com/dukerupert/mealplan/internal/auth/authtest"
)

func TestVerifyValidToken(t *testing.T) {
	iss := authtest.NewIssuer(t)
	token := iss.Token(auth.User{ID: "user_1", Email: "alice@example.com", Name: "Alice Smith"})

	u, err := iss.Verifier().Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "Alice Smith", u.Name)
}

func TestVerifyBuildsNameFromParts(t *testing.T) {
	iss := authtest.NewIssuer(t)
	token := iss.Sign(jwt.MapClaims{
		"iss":         authtest.Issuer,
		"sub":         "user_2",
		"given_name":  "Bob",
		"family_name": "Jones",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	u, err := iss.Verifier().Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Bob Jones", u.Name)
	assert.Empty(t, u.Email)
}

func TestVerifyRejects(t *testing.T) {
	iss := authtest.NewIssuer(t)
	other := authtest.NewIssuer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", iss.Sign(jwt.MapClaims{
			"iss": authtest.Issuer,
			"sub": "user_1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"wrong issuer", iss.Sign(jwt.MapClaims{
			"iss": "https://evil.test",
			"sub": "user_1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"foreign key", other.Token(auth.User{ID: "user_1"})},
		{"garbage", "not-a-jwt"},
	}

	v := iss.Verifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			assert.Error(t, err)
		})
	}
}

func TestAuthenticateReadsHeaderAndCookie(t *testing.T) {
	iss := authtest.NewIssuer(t)
	v := iss.Verifier()
	token := iss.Token(auth.User{ID: "user_1"})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	u, err := v.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "user_1", u.ID)

	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	u, err = v.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "user_1", u.ID)
}

func TestAuthenticateNoToken(t *testing.T) {
	v := authtest.NewIssuer(t).Verifier()

	_, err := v.Authenticate(httptest.NewRequest("GET", "/", nil))
	assert.True(t, errors.Is(err, auth.ErrNoToken))
}
