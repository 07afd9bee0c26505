package transport

import (
	"errors"
	"net/http"
	"strings"

	"lotteryplus/internal/service"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	lottery service.LotteryService
}

func NewWebhookHandler(lottery service.LotteryService) *WebhookHandler {
	return &WebhookHandler{lottery: lottery}
}

type paymentEvent struct {
	InvoiceID string  `json:"invoice_id"`
	Amount    float64 `json:"amount"`
	TxHash    string  `json:"tx_hash"`
	Status    string  `json:"status"`
}

// HandlePaymentEvent handles POST /webhook/payments from the payment
// provider. Only status "confirmed" reaches the reconciler; anything else is
// rejected here so the ledger never sees a partial event.
func (h *WebhookHandler) HandlePaymentEvent(c *gin.Context) {
	var event paymentEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "no_json"})
		return
	}

	if event.InvoiceID == "" || event.TxHash == "" || event.Amount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "missing_fields"})
		return
	}

	if strings.ToLower(event.Status) != "confirmed" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "not_confirmed"})
		return
	}

	activation, err := h.lottery.Confirm(c.Request.Context(), event.InvoiceID, event.TxHash, event.Amount)
	if err != nil {
		if errors.Is(err, service.ErrInvoiceNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "invoice_not_found_or_already_confirmed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "reason": "confirmation_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"owner":     activation.Owner,
		"activated": activation.Tickets,
	})
}
