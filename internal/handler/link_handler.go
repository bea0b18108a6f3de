package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service service.LinkService
	baseURL string
	logger  *zap.Logger
}

func NewLinkHandler(service service.LinkService, baseURL string, logger *zap.Logger) *LinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		service: service,
		baseURL: baseURL,
		logger:  logger,
	}
}

type CreateLinkRequest struct {
	URL           string     `json:"url" binding:"required,url"`
	CustomShortID string     `json:"custom_short_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type CreateLinkResponse struct {
	ShortID     string     `json:"short_id"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type UpdateLinkRequest struct {
	NewURL string `json:"new_url" binding:"required,url"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateLink handles POST /api/url/shorten. Works for both anonymous and
// authenticated callers: with an owner identity present the link becomes
// owned, otherwise it is anonymous and immutable.
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	input := &models.CreateLinkInput{
		OriginalURL: req.URL,
		ExpiresAt:   req.ExpiresAt,
	}
	if ownerID, ok := middleware.OwnerID(c); ok {
		input.OwnerID = &ownerID
	}
	if req.CustomShortID != "" {
		input.CustomShortID = &req.CustomShortID
	}

	link, err := h.service.CreateLink(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_url",
				Message: "Invalid URL format. Please include http:// or https://",
			})
		case errors.Is(err, service.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_code",
				Message: "Custom short id must be 4-12 characters (letters, digits, - and _)",
			})
		case errors.Is(err, repository.ErrShortIDTaken):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "short_id_taken",
				Message: "This short URL is already taken",
			})
		default:
			h.logger.Error("Failed to create link", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to create link",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, CreateLinkResponse{
		ShortID:     link.ShortID,
		ShortURL:    h.baseURL + "/" + link.ShortID,
		OriginalURL: link.OriginalURL,
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
	})
}

// Redirect handles GET /:shortID.
func (h *LinkHandler) Redirect(c *gin.Context) {
	shortID := c.Param("shortID")

	link, err := h.service.ResolveLink(c.Request.Context(), shortID, c.ClientIP())
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Link not found or expired",
			})
			return
		}
		h.logger.Error("Failed to resolve link", zap.String("short_id", shortID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to resolve link",
		})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, link.OriginalURL)
}

// MyLinks handles GET /api/url/my-urls.
func (h *LinkHandler) MyLinks(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_owner_id",
			Message: "Owner identity is required",
		})
		return
	}

	links, err := h.service.ListOwned(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to list links", zap.String("owner_id", ownerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list links",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"urls": links})
}

// UpdateLink handles PATCH /api/url/:shortID.
func (h *LinkHandler) UpdateLink(c *gin.Context) {
	shortID := c.Param("shortID")
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_owner_id",
			Message: "Owner identity is required",
		})
		return
	}

	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "New URL is required",
		})
		return
	}

	link, err := h.service.UpdateLink(c.Request.Context(), shortID, ownerID, req.NewURL)
	if err != nil {
		h.respondMutationError(c, shortID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "URL updated successfully", "updatedUrl": link})
}

// DeleteLink handles DELETE /api/url/:shortID.
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	shortID := c.Param("shortID")
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_owner_id",
			Message: "Owner identity is required",
		})
		return
	}

	if err := h.service.DeleteLink(c.Request.Context(), shortID, ownerID); err != nil {
		h.respondMutationError(c, shortID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "URL deleted successfully"})
}

// GetStats handles GET /api/url/:shortID/stats.
func (h *LinkHandler) GetStats(c *gin.Context) {
	shortID := c.Param("shortID")
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_owner_id",
			Message: "Owner identity is required",
		})
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), shortID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "URL not found or access denied",
			})
			return
		}
		h.logger.Error("Failed to get stats", zap.String("short_id", shortID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to get stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// respondMutationError maps update/delete failures onto the status codes
// the original API contract promises: 404 absent, 403 foreign, 400 bad URL.
func (h *LinkHandler) respondMutationError(c *gin.Context, shortID string, err error) {
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "URL not found",
		})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "unauthorized",
			Message: "Unauthorized",
		})
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_url",
			Message: "Invalid URL format. Please include http:// or https://",
		})
	default:
		h.logger.Error("Link mutation failed", zap.String("short_id", shortID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal error",
		})
	}
}
