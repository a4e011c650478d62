package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rebuildfund/rebuildfund-backend/internal/auth"
	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
)

// TokenVerifier turns a session token into an identity
type TokenVerifier interface {
	Verify(token string) (*domain.Identity, error)
}

type AuthMiddleware struct {
	log    *logger.Logger
	tokens TokenVerifier
}

func NewAuthMiddleware(log *logger.Logger, tokens TokenVerifier) *AuthMiddleware {
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), tokens: tokens}
}

// Authenticate stores the caller's identity in the request context when a
// bearer token is present. Requests without a token pass through and the
// use cases decide whether they need one; a bad token is rejected.
func (am *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		identity, err := am.tokens.Verify(auth.BearerToken(header))
		if err != nil {
			am.log.Debug("rejected token", "path", c.FullPath(), "error", err)
			RespondError(c, err)
			return
		}
		c.Request = c.Request.WithContext(domain.WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

// RequireAuth aborts with 401 when Authenticate found no identity
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if domain.IdentityFrom(c.Request.Context()) == nil {
			RespondInvalid(c, domain.CodeNotAuthenticated, "missing or invalid token")
			return
		}
		c.Next()
	}
}

// RequestLogger logs each request once it completes
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			log.Error("request failed", append(kv, "error", c.Errors.String())...)
			return
		}
		log.Debug("request", kv...)
	}
}
