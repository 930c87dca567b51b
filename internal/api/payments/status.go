package payments

import (
	"errors"
	"net/http"

	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) Status(c *gin.Context) {
	orderRef := c.Query("orderId")
	if orderRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId is required"})
		return
	}

	view, err := h.confirm.Status(c.Request.Context(), orderRef)
	if err != nil {
		if errors.Is(err, donations.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		logger.Error(c.Request.Context(), h.log, "status lookup failed", zap.String("order_ref", orderRef), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load status"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, view)
}
