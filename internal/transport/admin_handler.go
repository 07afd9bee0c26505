package transport

import (
	"errors"
	"net/http"

	"lotteryplus/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	lottery service.LotteryService
}

func NewAdminHandler(lottery service.LotteryService) *AdminHandler {
	return &AdminHandler{lottery: lottery}
}

// Draw handles POST /api/v1/admin/draw: runs the one-time prize draw.
func (h *AdminHandler) Draw(c *gin.Context) {
	result, err := h.lottery.Draw(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotReady),
			errors.Is(err, service.ErrInsufficientPool),
			errors.Is(err, service.ErrAlreadyDrawn):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "draw failed"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status handles GET /api/v1/admin/status.
func (h *AdminHandler) Status(c *gin.Context) {
	status, err := h.lottery.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}

	c.JSON(http.StatusOK, status)
}
