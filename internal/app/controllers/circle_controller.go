package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/app/services"
	"github.com/yigit/unilife/internal/livesync"
	"github.com/yigit/unilife/internal/middleware"
	"github.com/yigit/unilife/internal/pkg/helpers"
)

// CircleController handles study circles and their chat
type CircleController struct {
	syncer        *livesync.Syncer
	circleService services.CircleService
	logger        zerolog.Logger
}

// NewCircleController creates a new CircleController
func NewCircleController(syncer *livesync.Syncer, circleService services.CircleService, logger zerolog.Logger) *CircleController {
	return &CircleController{
		syncer:        syncer,
		circleService: circleService,
		logger:        logger,
	}
}

// ListCircles handles GET /circles. Chats are left out; fetch a circle for them.
func (c *CircleController) ListCircles(ctx *gin.Context) {
	circles, err := c.syncer.Circles()
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	viewerID := ctx.GetString(middleware.ContextUserIDKey)
	summaries := make([]dto.CircleSummary, 0, len(circles))
	for _, circle := range circles {
		summaries = append(summaries, dto.NewCircleSummary(circle, viewerID))
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(summaries))
}

// CreateCircle handles POST /circles
func (c *CircleController) CreateCircle(ctx *gin.Context) {
	var req dto.CreateCircleRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	id, err := c.circleService.CreateCircle(ctx.Request.Context(), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.CreatedResponse{ID: id}))
}

// GetCircle handles GET /circles/:id
func (c *CircleController) GetCircle(ctx *gin.Context) {
	circle, err := c.syncer.Circle(ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(circle))
}

// JoinCircle handles POST /circles/:id/join
func (c *CircleController) JoinCircle(ctx *gin.Context) {
	if err := c.circleService.JoinCircle(ctx.Request.Context(), ctx.Param("id")); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Joined circle"}))
}

// ListMessages handles GET /circles/:id/messages?page&size, oldest first
func (c *CircleController) ListMessages(ctx *gin.Context) {
	circle, err := c.syncer.Circle(ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	page, size := helpers.ParsePaginationParams(ctx)
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(helpers.Paginate(circle.Chat, page, size)))
}

// SendMessage handles POST /circles/:id/messages
func (c *CircleController) SendMessage(ctx *gin.Context) {
	var req dto.SendMessageRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	msg, err := c.circleService.SendMessage(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(msg))
}

// ToggleReaction handles POST /circles/:id/messages/:messageId/reactions
func (c *CircleController) ToggleReaction(ctx *gin.Context) {
	var req dto.ToggleReactionRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	err := c.circleService.ToggleReaction(ctx.Request.Context(), ctx.Param("id"), ctx.Param("messageId"), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Reaction toggled"}))
}
