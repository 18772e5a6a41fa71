package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/livesync"
	"github.com/yigit/unilife/internal/middleware"
	"github.com/yigit/unilife/internal/session"
)

// SessionController handles sign-in, guest mode and sign-out
type SessionController struct {
	session *session.Store
	syncer  *livesync.Syncer
	logger  zerolog.Logger
}

// NewSessionController creates a new SessionController
func NewSessionController(sess *session.Store, syncer *livesync.Syncer, logger zerolog.Logger) *SessionController {
	return &SessionController{
		session: sess,
		syncer:  syncer,
		logger:  logger,
	}
}

func (c *SessionController) view() dto.SessionResponse {
	resp := dto.NewSessionResponse(c.session.State(), c.syncer.Statuses())
	resp.User = c.session.CurrentUser()
	return resp
}

// GetSession handles GET /session
func (c *SessionController) GetSession(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(c.view()))
}

// SignIn handles POST /session/sign-in with an ID token
func (c *SessionController) SignIn(ctx *gin.Context) {
	var req dto.SignInRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	if _, err := c.session.SignIn(ctx.Request.Context(), req.IDToken); err != nil {
		c.logger.Warn().Err(err).Msg("Sign-in rejected")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(c.view()))
}

// EnterGuest handles POST /session/guest
func (c *SessionController) EnterGuest(ctx *gin.Context) {
	c.session.EnterGuest(ctx.Request.Context())
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(c.view()))
}

// SignOut handles POST /session/sign-out
func (c *SessionController) SignOut(ctx *gin.Context) {
	if err := c.session.SignOut(ctx.Request.Context()); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(c.view()))
}
