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

// ContentController handles notes, announcements and note requests of a circle
type ContentController struct {
	syncer         *livesync.Syncer
	noteService    services.NoteService
	requestService services.RequestService
	logger         zerolog.Logger
}

// NewContentController creates a new ContentController
func NewContentController(
	syncer *livesync.Syncer,
	noteService services.NoteService,
	requestService services.RequestService,
	logger zerolog.Logger,
) *ContentController {
	return &ContentController{
		syncer:         syncer,
		noteService:    noteService,
		requestService: requestService,
		logger:         logger,
	}
}

// ListNotes handles GET /circles/:id/notes, newest first
func (c *ContentController) ListNotes(ctx *gin.Context) {
	notes, err := c.syncer.Notes(ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(notes))
}

// AddNote handles POST /circles/:id/notes
func (c *ContentController) AddNote(ctx *gin.Context) {
	var req dto.AddNoteRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	id, err := c.noteService.AddNote(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.CreatedResponse{ID: id}))
}

// ListAnnouncements handles GET /circles/:id/announcements, newest first
func (c *ContentController) ListAnnouncements(ctx *gin.Context) {
	announcements, err := c.syncer.Announcements(ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(announcements))
}

// AddAnnouncement handles POST /circles/:id/announcements
func (c *ContentController) AddAnnouncement(ctx *gin.Context) {
	var req dto.AddAnnouncementRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	id, err := c.noteService.AddAnnouncement(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.CreatedResponse{ID: id}))
}

// ListRequests handles GET /circles/:id/requests, newest first
func (c *ContentController) ListRequests(ctx *gin.Context) {
	requests, err := c.syncer.NoteRequests(ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(requests))
}

// AddRequest handles POST /circles/:id/requests
func (c *ContentController) AddRequest(ctx *gin.Context) {
	var req dto.AddNoteRequestRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	id, err := c.requestService.AddRequest(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.CreatedResponse{ID: id}))
}

// FulfillRequest handles POST /requests/:id/fulfill
func (c *ContentController) FulfillRequest(ctx *gin.Context) {
	if err := c.requestService.FulfillRequest(ctx.Request.Context(), ctx.Param("id")); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Request fulfilled"}))
}
