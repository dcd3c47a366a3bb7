package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"water-monitoring/internal/apperr"
	"water-monitoring/internal/model"
	"water-monitoring/internal/session"

	"github.com/gin-gonic/gin"
)

const sessionContextKey = "hydro.session"

// SessionResolver maps bearer tokens to live sessions
type SessionResolver interface {
	Resolve(token string) (*session.Session, error)
}

// RequireSession rejects requests without a valid bearer token
func RequireSession(resolver SessionResolver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := resolve(c, resolver)
		if err != nil {
			logger.Warn("unauthenticated request",
				"path", c.Request.URL.Path,
				"error", err.Error(),
			)
			message := "a valid session is required"
			if appErr, ok := apperr.As(err); ok {
				message = appErr.Message
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": message,
			})
			return
		}
		c.Set(sessionContextKey, s)
		c.Next()
	}
}

// OptionalSession attaches the session when a valid token is present and
// lets anonymous requests through, leaving the decision to the handler.
func OptionalSession(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s, err := resolve(c, resolver); err == nil {
			c.Set(sessionContextKey, s)
		}
		c.Next()
	}
}

// CurrentSession returns the session attached by RequireSession or OptionalSession
func CurrentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok
}

// CurrentIdentity returns the caller's identity, or nil when anonymous
func CurrentIdentity(c *gin.Context) *model.Identity {
	s, ok := CurrentSession(c)
	if !ok {
		return nil
	}
	identity, ok := s.Identity()
	if !ok {
		return nil
	}
	return &identity
}

func resolve(c *gin.Context, resolver SessionResolver) (*session.Session, error) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return nil, apperr.NewAuthError("missing bearer token", nil)
	}
	return resolver.Resolve(strings.TrimSpace(token))
}
