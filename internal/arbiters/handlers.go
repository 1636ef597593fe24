package arbiters

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for arbiter statistics.
type Handler struct {
	service *Service
}

// NewHandler creates a new arbiters handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up arbiter routes. All read-only, all public.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/arbiters/leaderboard", h.GetLeaderboard)
	r.GET("/arbiters/:address", h.GetStats)
}

// GetStats handles GET /v1/arbiters/:address
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		if errors.Is(err, ErrArbiterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No rulings recorded for this address",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"arbiter": stats})
}

// GetLeaderboard handles GET /v1/arbiters/leaderboard
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	board, err := h.service.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": board,
		"count":       len(board),
	})
}
