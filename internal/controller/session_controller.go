package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"water-monitoring/internal/middleware"
	"water-monitoring/internal/session"

	"github.com/gin-gonic/gin"
)

// SessionManager is the session surface the HTTP layer needs
type SessionManager interface {
	Login(ctx context.Context, identifier, secret string) (*session.LoginResult, error)
	Logout(sessionID string) error
	Navigate(sessionID string, v session.View) error
	Resolve(token string) (*session.Session, error)
}

// SessionController handles sign-in, sign-out and navigation
type SessionController struct {
	sessions SessionManager
	logger   *slog.Logger
}

// NewSessionController creates a new session controller
func NewSessionController(sessions SessionManager, logger *slog.Logger) *SessionController {
	return &SessionController{sessions: sessions, logger: logger}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type navigateRequest struct {
	View string `json:"view"`
}

// Login handles POST /v1/sessions
func (c *SessionController) Login(ctx *gin.Context) {
	startTime := time.Now()

	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"message": "body must be a JSON object with identifier and secret",
		})
		return
	}

	result, err := c.sessions.Login(ctx.Request.Context(), req.Identifier, req.Secret)
	if err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}

	ctx.JSON(http.StatusCreated, result)
}

// Current handles GET /v1/session
func (c *SessionController) Current(ctx *gin.Context) {
	s, _ := middleware.CurrentSession(ctx)
	identity, _ := s.Identity()
	ctx.JSON(http.StatusOK, gin.H{
		"session_id": s.ID,
		"state":      s.State().String(),
		"identity":   identity,
		"view":       s.View(),
		"expires_at": s.ExpiresAt,
	})
}

// Logout handles DELETE /v1/session
func (c *SessionController) Logout(ctx *gin.Context) {
	startTime := time.Now()
	s, _ := middleware.CurrentSession(ctx)

	if err := c.sessions.Logout(s.ID); err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// Navigate handles PUT /v1/session/view
func (c *SessionController) Navigate(ctx *gin.Context) {
	startTime := time.Now()
	s, _ := middleware.CurrentSession(ctx)

	var req navigateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"message": "body must be a JSON object with a view",
		})
		return
	}

	if err := c.sessions.Navigate(s.ID, session.View(req.View)); err != nil {
		writeError(ctx, c.logger, err, startTime, gin.H{"view": s.View()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"view": s.View()})
}
