package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/entitlement-engine/internal/http/response"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/services"
)

type CheckoutHandler struct {
	log      *logger.Logger
	checkout services.CheckoutService
}

func NewCheckoutHandler(log *logger.Logger, checkout services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{log: log.With("handler", "CheckoutHandler"), checkout: checkout}
}

// POST /api/checkout
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req services.CheckoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	session, err := h.checkout.Initiate(c.Request.Context(), userID, req)
	if err != nil {
		h.log.Warn("Checkout failed", "user_id", userID, "provider", req.Provider, "error", err)
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, session)
}
