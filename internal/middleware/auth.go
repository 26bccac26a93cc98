package middleware

import (
	"context"
	stdErrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/regprofile/internal/auth"
	"github.com/charlesng35/regprofile/internal/identity"
	"github.com/charlesng35/regprofile/pkg/errors"
	"github.com/charlesng35/regprofile/pkg/logger"
	"github.com/charlesng35/regprofile/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// UserResolver maps verified token claims onto a stored user id.
type UserResolver interface {
	Resolve(ctx context.Context, claims identity.Claims) (string, error)
}

// Auth verifies the bearer token and resolves the caller to a user row.
func Auth(verifier iauth.TokenVerifier, resolver UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		claims, err := verifier.Verify(ctx, strings.TrimSpace(authz[7:]))
		if err != nil {
			logger.FromContext(ctx, "auth").Debug("bearer token rejected", zap.Error(err))
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		userID, err := resolver.Resolve(ctx, claims)
		if err != nil {
			if stdErrors.Is(err, identity.ErrUserNotFound) {
				response.Error(c, errors.ErrUserNotFound)
			} else {
				response.Error(c, errors.ErrInternalServer.WithInternal(err))
			}
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, userID)
		c.Request = c.Request.WithContext(logger.IntoContext(ctx, zap.String("user_id", userID)))

		c.Next()
	}
}
