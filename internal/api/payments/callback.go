package payments

import (
	"context"
	"errors"
	"net/http"
	"time"

	"donation-app/internal/app/confirmation"
	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/gateway"
	"donation-app/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	bodyOK       = gin.H{"status": "ok"}
	bodyRejected = gin.H{"status": "rejected"}
	bodyRetry    = gin.H{"status": "retry"}
)

const (
	sourceCallback = "callback"
	sourceReturn   = "return"
)

// Callback handles gateway server-to-server notifications. The gateway only
// ever learns ok, rejected or retry.
func (h *Handler) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	gw, err := h.gateways.Get(c.Param("gateway"))
	if err != nil {
		c.JSON(http.StatusNotFound, bodyRejected)
		return
	}

	raw, err := readCallback(c)
	if err != nil {
		h.metrics.Rejection(gw.Name(), string(gateway.ReasonMalformedPayload))
		c.JSON(http.StatusBadRequest, bodyRejected)
		return
	}

	status, p := h.process(ctx, gw, raw)
	h.record(ctx, gw.Name(), sourceCallback, raw, p)

	switch status {
	case http.StatusOK:
		c.JSON(status, bodyOK)
	case http.StatusBadRequest:
		c.JSON(status, bodyRejected)
	default:
		c.JSON(http.StatusInternalServerError, bodyRetry)
	}
}

type processed struct {
	orderRef string
	outcome  string
	result   confirmation.Result
}

// process verifies and confirms one callback and maps the result to an
// HTTP status.
func (h *Handler) process(ctx context.Context, gw gateway.Gateway, raw gateway.RawCallback) (int, processed) {
	ev, err := gw.VerifyCallback(raw)
	if err != nil {
		var verr *gateway.VerificationError
		switch {
		case errors.Is(err, gateway.ErrUnhandledEvent):
			logger.Debug(ctx, h.log, "ignoring gateway event", zap.String("gateway", gw.Name()), zap.Error(err))
			return http.StatusOK, processed{outcome: "ignored"}
		case errors.As(err, &verr):
			h.metrics.Rejection(gw.Name(), string(verr.Reason))
			logger.Warn(ctx, h.log, "callback verification failed",
				zap.String("gateway", gw.Name()),
				zap.String("reason", string(verr.Reason)),
				zap.String("detail", verr.Detail))
			return http.StatusBadRequest, processed{orderRef: raw.Fields["txnid"], outcome: "rejected:" + string(verr.Reason)}
		default:
			h.metrics.Rejection(gw.Name(), string(gateway.ReasonMalformedPayload))
			logger.Warn(ctx, h.log, "callback could not be verified", zap.String("gateway", gw.Name()), zap.Error(err))
			return http.StatusBadRequest, processed{outcome: "rejected:" + string(gateway.ReasonMalformedPayload)}
		}
	}

	res, err := h.confirm.Confirm(ctx, gw.Name(), ev)
	if err != nil {
		switch {
		case errors.Is(err, donations.ErrOrderNotFound):
			h.metrics.Rejection(gw.Name(), "UNKNOWN_ORDER")
			logger.Warn(ctx, h.log, "callback for unknown order", zap.String("gateway", gw.Name()), zap.String("order_ref", ev.OrderRef))
			return http.StatusBadRequest, processed{orderRef: ev.OrderRef, outcome: "rejected:UNKNOWN_ORDER"}
		case errors.Is(err, confirmation.ErrGatewayMismatch):
			h.metrics.Rejection(gw.Name(), "GATEWAY_MISMATCH")
			logger.Warn(ctx, h.log, "callback from wrong gateway", zap.String("order_ref", ev.OrderRef), zap.Error(err))
			return http.StatusBadRequest, processed{orderRef: ev.OrderRef, outcome: "rejected:GATEWAY_MISMATCH"}
		default:
			logger.Error(ctx, h.log, "callback processing failed", zap.String("order_ref", ev.OrderRef), zap.Error(err))
			return http.StatusInternalServerError, processed{orderRef: ev.OrderRef, outcome: "error"}
		}
	}
	return http.StatusOK, processed{orderRef: ev.OrderRef, outcome: string(res.Outcome), result: res}
}

// record writes the audit row. It is best effort and never changes the response.
func (h *Handler) record(ctx context.Context, gatewayName, source string, raw gateway.RawCallback, p processed) {
	if h.audit == nil {
		return
	}
	ev := &donations.CallbackEvent{
		Gateway:    gatewayName,
		OrderRef:   p.orderRef,
		Source:     source,
		Outcome:    p.outcome,
		Fields:     auditFields(raw),
		ReceivedAt: time.Now().UTC(),
	}
	if err := h.audit.RecordCallback(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn(ctx, h.log, "failed to record callback", zap.String("order_ref", p.orderRef), zap.Error(err))
	}
}
