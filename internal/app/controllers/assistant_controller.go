package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/app/services"
	"github.com/yigit/unilife/internal/middleware"
)

// AssistantController exposes the study assistant. Generation failures come
// back as fallback text with status 200.
type AssistantController struct {
	assistantService services.AssistantService
}

// NewAssistantController creates a new AssistantController
func NewAssistantController(assistantService services.AssistantService) *AssistantController {
	return &AssistantController{assistantService: assistantService}
}

// SummarizeNote handles POST /notes/:id/summary
func (c *AssistantController) SummarizeNote(ctx *gin.Context) {
	text, err := c.assistantService.SummarizeNote(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.AssistantResponse{Text: text}))
}

// SuggestPlan handles POST /requests/:id/study-plan
func (c *AssistantController) SuggestPlan(ctx *gin.Context) {
	text, err := c.assistantService.SuggestPlanForRequest(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.AssistantResponse{Text: text}))
}
