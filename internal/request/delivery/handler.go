package delivery

import (
	"errors"
	"net/http"

	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/internal/request/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestHandler handles request, follow-up and sync HTTP requests
type RequestHandler struct {
	requestUsecase  usecase.RequestUsecase
	followupUsecase usecase.FollowupUsecase
	syncUsecase     usecase.SyncUsecase
	logger          *zap.Logger
}

// NewRequestHandler creates a new RequestHandler
func NewRequestHandler(
	requestUsecase usecase.RequestUsecase,
	followupUsecase usecase.FollowupUsecase,
	syncUsecase usecase.SyncUsecase,
	logger *zap.Logger,
) *RequestHandler {
	return &RequestHandler{
		requestUsecase:  requestUsecase,
		followupUsecase: followupUsecase,
		syncUsecase:     syncUsecase,
		logger:          logger,
	}
}

// UpdateSettingsRequest represents the request body for updating settings
type UpdateSettingsRequest struct {
	FollowupAction string `json:"followupAction" binding:"required"`
}

// ListRequests returns the user's requests
// GET /api/requests?status=active&q=acme
func (h *RequestHandler) ListRequests(c *gin.Context) {
	userID := c.GetString("userID")
	status := requestdomain.RequestStatus(c.Query("status"))

	requests, err := h.requestUsecase.ListRequests(c.Request.Context(), userID, status, c.Query("q"))
	if err != nil {
		h.fail(c, "list requests", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"total":    len(requests),
	})
}

// GetRequest returns one request with its follow-ups
// GET /api/requests/:id
func (h *RequestHandler) GetRequest(c *gin.Context) {
	userID := c.GetString("userID")

	req, err := h.requestUsecase.GetRequest(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, "get request", err)
		return
	}

	c.JSON(http.StatusOK, req)
}

// UpdateRequest edits a request
// PATCH /api/requests/:id
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	userID := c.GetString("userID")

	var update requestdomain.RequestUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.requestUsecase.UpdateRequest(c.Request.Context(), userID, c.Param("id"), update)
	if err != nil {
		h.fail(c, "update request", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "request": req})
}

// DeleteRequest deletes a request and its follow-ups
// DELETE /api/requests/:id
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.requestUsecase.DeleteRequest(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.fail(c, "delete request", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SendFollowup follows up on one request now
// POST /api/requests/:id/followup
func (h *RequestHandler) SendFollowup(c *gin.Context) {
	userID := c.GetString("userID")

	mode, err := h.followupUsecase.SendNow(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, "send follow-up", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "mode": mode})
}

// Sync ingests labeled threads and checks payments for the current user
// POST /api/sync
func (h *RequestHandler) Sync(c *gin.Context) {
	userID := c.GetString("userID")

	result, err := h.syncUsecase.SyncUser(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "sync", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Cron runs the full pipeline for every user
// GET|POST /api/cron
func (h *RequestHandler) Cron(c *gin.Context) {
	result, err := h.syncUsecase.RunCron(c.Request.Context())
	if err != nil {
		h.fail(c, "cron", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"processed":     result.Processed,
		"skipped":       result.Skipped,
		"errors":        result.Errors,
		"total":         result.Total,
		"synced":        result.Synced,
		"autoCompleted": result.AutoCompleted,
	})
}

// ListVoices returns the voice catalog
// GET /api/voices
func (h *RequestHandler) ListVoices(c *gin.Context) {
	voices, err := h.requestUsecase.ListVoices(c.Request.Context())
	if err != nil {
		h.fail(c, "list voices", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"voices": voices})
}

// GetSettings returns the user's follow-up preference
// GET /api/settings
func (h *RequestHandler) GetSettings(c *gin.Context) {
	settings, err := h.requestUsecase.GetSettings(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		h.fail(c, "get settings", err)
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings changes the user's follow-up preference
// PATCH /api/settings
func (h *RequestHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.requestUsecase.UpdateSettings(c.Request.Context(), c.GetString("userID"), req.FollowupAction)
	if err != nil {
		h.fail(c, "update settings", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "settings": settings})
}

// fail maps domain errors to status codes. Anything unexpected is logged and hidden.
func (h *RequestHandler) fail(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, requestdomain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, requestdomain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, requestdomain.ErrPreconditionFailed),
		errors.Is(err, requestdomain.ErrFollowupInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request handler failed", zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + operation})
	}
}
