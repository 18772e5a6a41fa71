package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/app/services"
	"github.com/yigit/unilife/internal/livesync"
	"github.com/yigit/unilife/internal/middleware"
)

// UserController serves the users cache and profile intents
type UserController struct {
	syncer         *livesync.Syncer
	profileService services.ProfileService
	logger         zerolog.Logger
}

// NewUserController creates a new UserController
func NewUserController(syncer *livesync.Syncer, profileService services.ProfileService, logger zerolog.Logger) *UserController {
	return &UserController{
		syncer:         syncer,
		profileService: profileService,
		logger:         logger,
	}
}

// ListUsers handles GET /users
func (c *UserController) ListUsers(ctx *gin.Context) {
	users, err := c.syncer.Users()
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(users))
}

// GetUser handles GET /users/:id
func (c *UserController) GetUser(ctx *gin.Context) {
	user, err := c.syncer.User(ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(user))
}

// UpdateProfile handles PUT /users/me
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	var req dto.UpdateProfileRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	if err := c.profileService.UpdateProfile(ctx.Request.Context(), &req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Profile updated"}))
}

// SendFriendRequest handles POST /users/:id/friend-requests
func (c *UserController) SendFriendRequest(ctx *gin.Context) {
	if err := c.profileService.SendFriendRequest(ctx.Request.Context(), ctx.Param("id")); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusAccepted, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Friend request sent"}))
}
