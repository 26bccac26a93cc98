package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/regprofile/internal/auth"
	"github.com/charlesng35/regprofile/internal/identity"
	"github.com/charlesng35/regprofile/pkg/response"
)

type resolverFunc func(ctx context.Context, claims identity.Claims) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, claims identity.Claims) (string, error) {
	return f(ctx, claims)
}

func newAuthRouter(t *testing.T, resolver UserResolver) (*gin.Engine, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/secure", Auth(jwtSvc, resolver), func(c *gin.Context) {
		claims := c.MustGet(CtxClaimsKey).(identity.Claims)
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(CtxUserIDKey),
			"email":   claims.Email,
		})
	})
	return r, jwtSvc
}

func TestAuthMiddleware(t *testing.T) {
	var seen identity.Claims
	r, jwtSvc := newAuthRouter(t, resolverFunc(func(_ context.Context, claims identity.Claims) (string, error) {
		seen = claims
		return "user-123", nil
	}))

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		Subject:       "auth0|abc",
		Email:         "jane@example.com",
		EmailVerified: true,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "user-123", payload["user_id"])
	require.Equal(t, "jane@example.com", payload["email"])
	require.Equal(t, "auth0|abc", seen.Subject)
	require.True(t, seen.EmailVerified)
}

func TestAuthMiddlewareRejectsMissingOrInvalidToken(t *testing.T) {
	r, _ := newAuthRouter(t, resolverFunc(func(context.Context, identity.Claims) (string, error) {
		t.Fatal("resolver must not run without a valid token")
		return "", nil
	}))

	for _, header := range []string{"", "Basic abc", "Bearer not-a-jwt"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code, header)
		require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

		var payload response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		require.Equal(t, "UNAUTHORIZED", payload.Error.Code)
	}
}

func TestAuthMiddlewareUnknownUser(t *testing.T) {
	r, jwtSvc := newAuthRouter(t, resolverFunc(func(context.Context, identity.Claims) (string, error) {
		return "", identity.ErrUserNotFound
	}))
	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{Subject: "ghost"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "USER_NOT_FOUND", payload.Error.Code)
}

func TestAuthMiddlewareResolverFailure(t *testing.T) {
	r, jwtSvc := newAuthRouter(t, resolverFunc(func(context.Context, identity.Claims) (string, error) {
		return "", errors.New("db down")
	}))
	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{Subject: "someone"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
