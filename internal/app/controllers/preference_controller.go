package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/middleware"
	"github.com/yigit/unilife/internal/pkg/apperrors"
	"github.com/yigit/unilife/internal/pkg/prefs"
)

// PreferenceController reads and writes the stored theme
type PreferenceController struct {
	prefs  *prefs.Store
	logger zerolog.Logger
}

// NewPreferenceController creates a new PreferenceController
func NewPreferenceController(store *prefs.Store, logger zerolog.Logger) *PreferenceController {
	return &PreferenceController{prefs: store, logger: logger}
}

// GetTheme handles GET /preferences/theme
func (c *PreferenceController) GetTheme(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ThemeResponse{Theme: string(c.prefs.Theme())}))
}

// SetTheme handles PUT /preferences/theme
func (c *PreferenceController) SetTheme(ctx *gin.Context) {
	var req dto.ThemeRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	theme, err := prefs.ParseTheme(req.Theme)
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewValidationError("theme", err.Error()))
		return
	}
	if err := c.prefs.SetTheme(theme); err != nil {
		c.logger.Error().Err(err).Str("theme", req.Theme).Msg("Failed to store theme")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ThemeResponse{Theme: string(theme)}))
}
