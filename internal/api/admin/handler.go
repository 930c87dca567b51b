package admin

import (
	"context"
	"errors"
	"net/http"

	"donation-app/internal/app/confirmation"
	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/gateway"
	"donation-app/internal/infra/ledger"
	"donation-app/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Reconciler interface {
	Reconcile(ctx context.Context, orderRef string) (confirmation.Result, error)
}

type Ledger interface {
	CallbackHistory(ctx context.Context, orderRef string) ([]donations.CallbackEvent, error)
	Totals(ctx context.Context) ([]ledger.StatusTotal, error)
}

type Handler struct {
	reconciler Reconciler
	ledger     Ledger
	log        *zap.Logger
}

func NewHandler(r Reconciler, l Ledger, log *zap.Logger) *Handler {
	return &Handler{reconciler: r, ledger: l, log: log}
}

type AdminDonation struct {
	confirmation.StatusView
	Gateway       string                   `json:"gateway"`
	FailureReason *donations.FailureReason `json:"failure_reason,omitempty"`
	ReceiptSent   bool                     `json:"receipt_sent"`
}

type ReconcileResponse struct {
	Outcome  string        `json:"outcome"`
	Donation AdminDonation `json:"donation"`
	Warning  string        `json:"warning,omitempty"`
}

func toAdmin(d donations.Donation) AdminDonation {
	return AdminDonation{
		StatusView:    confirmation.NewStatusView(d),
		Gateway:       d.Gateway,
		FailureReason: d.FailureReason,
		ReceiptSent:   d.ReceiptSent,
	}
}

func (h *Handler) Dashboard(c *gin.Context) {
	totals, err := h.ledger.Totals(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), h.log, "dashboard totals failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load totals"})
		return
	}
	if totals == nil {
		totals = []ledger.StatusTotal{}
	}
	c.JSON(http.StatusOK, gin.H{"totals": totals})
}

// Reconcile forces a gateway status lookup for one order.
func (h *Handler) Reconcile(c *gin.Context) {
	orderRef := c.Param("orderId")

	res, err := h.reconciler.Reconcile(c.Request.Context(), orderRef)
	if err != nil {
		switch {
		case errors.Is(err, donations.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case gateway.OutcomeUnknown(err):
			c.JSON(http.StatusAccepted, ReconcileResponse{
				Outcome:  string(confirmation.OutcomeHold),
				Donation: toAdmin(res.Donation),
				Warning:  "gateway did not answer, donation left pending",
			})
		default:
			logger.Error(c.Request.Context(), h.log, "manual reconcile failed", zap.String("order_ref", orderRef), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Reconciliation failed"})
		}
		return
	}

	c.JSON(http.StatusOK, ReconcileResponse{Outcome: string(res.Outcome), Donation: toAdmin(res.Donation)})
}

func (h *Handler) Callbacks(c *gin.Context) {
	orderRef := c.Param("orderId")

	history, err := h.ledger.CallbackHistory(c.Request.Context(), orderRef)
	if err != nil {
		logger.Error(c.Request.Context(), h.log, "callback history failed", zap.String("order_ref", orderRef), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load callbacks"})
		return
	}
	if history == nil {
		history = []donations.CallbackEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderRef, "callbacks": history})
}
