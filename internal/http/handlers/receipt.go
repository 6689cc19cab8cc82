package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/entitlement-engine/internal/http/response"
	"github.com/yungbote/entitlement-engine/internal/services"
)

type ReceiptHandler struct {
	receipts services.ReceiptService
}

func NewReceiptHandler(receipts services.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

// GET /api/transactions/:id/receipt
func (h *ReceiptHandler) GetReceipt(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	txID, ok := pathID(c, "id", "invalid_transaction_id")
	if !ok {
		return
	}
	data, err := h.receipts.GetReceipt(c.Request.Context(), userID, txID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"receipt": data})
}
