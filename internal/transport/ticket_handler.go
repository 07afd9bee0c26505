package transport

import (
	"errors"
	"net/http"
	"strconv"

	"lotteryplus/internal/service"

	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	lottery service.LotteryService
}

func NewTicketHandler(lottery service.LotteryService) *TicketHandler {
	return &TicketHandler{lottery: lottery}
}

type reserveRequest struct {
	Owner    string `json:"owner" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

// Reserve handles POST /api/v1/tickets/reserve. On success the caller gets
// the assigned ticket numbers, the price to pay and the invoice id the
// payment provider must echo back in its confirmation webhook.
func (h *TicketHandler) Reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner and quantity are required"})
		return
	}

	reservation, err := h.lottery.Reserve(c.Request.Context(), req.Owner, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuantity):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInsufficientCapacity):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reservation failed"})
		}
		return
	}

	c.JSON(http.StatusOK, reservation)
}

// OwnerTickets handles GET /api/v1/tickets/:owner.
func (h *TicketHandler) OwnerTickets(c *gin.Context) {
	owner := c.Param("owner")

	tickets, err := h.lottery.OwnerTickets(c.Request.Context(), owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tickets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"owner": owner, "tickets": tickets})
}

// Leaderboard handles GET /api/v1/leaderboard, owners ranked by active
// ticket count.
func (h *TicketHandler) Leaderboard(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	standings, err := h.lottery.TopBuyers(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"top": standings})
}

// Draws handles GET /api/v1/draws.
func (h *TicketHandler) Draws(c *gin.Context) {
	draws, err := h.lottery.DrawHistory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load draws"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"draws": draws})
}
