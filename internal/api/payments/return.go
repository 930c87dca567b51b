package payments

import (
	"net/http"
	"net/url"

	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Return handles the donor's browser coming back from the gateway. A POST
// carries the signed gateway fields (PayU surl/furl) and runs the same
// confirmation as a callback. A GET carries only ?orderId= and asks the
// gateway directly. Either way the donor is redirected, never shown an error.
func (h *Handler) Return(c *gin.Context) {
	ctx := c.Request.Context()

	gw, err := h.gateways.Get(c.Param("gateway"))
	if err != nil {
		c.Redirect(http.StatusSeeOther, h.urls.Pending)
		return
	}

	if c.Request.Method == http.MethodGet {
		orderRef := c.Query("orderId")
		if orderRef == "" {
			c.Redirect(http.StatusSeeOther, h.urls.Pending)
			return
		}
		status := donations.StatusPending
		res, err := h.confirm.Reconcile(ctx, orderRef)
		if err != nil {
			logger.Warn(ctx, h.log, "return lookup did not settle the donation", zap.String("order_ref", orderRef), zap.Error(err))
		}
		if res.Donation.Status != "" {
			status = res.Donation.Status
		}
		c.Redirect(http.StatusSeeOther, h.redirectFor(status, orderRef))
		return
	}

	raw, err := readCallback(c)
	if err != nil {
		c.Redirect(http.StatusSeeOther, h.urls.Pending)
		return
	}

	code, p := h.process(ctx, gw, raw)
	h.record(ctx, gw.Name(), sourceReturn, raw, p)

	status := donations.StatusPending
	if code == http.StatusOK && p.result.Donation.Status != "" {
		status = p.result.Donation.Status
	}
	c.Redirect(http.StatusSeeOther, h.redirectFor(status, p.orderRef))
}

func (h *Handler) redirectFor(status donations.Status, orderRef string) string {
	base := h.urls.Pending
	switch status {
	case donations.StatusCompleted:
		base = h.urls.Success
	case donations.StatusFailed:
		base = h.urls.Failure
	}
	if orderRef == "" {
		return base
	}

	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("orderId", orderRef)
	u.RawQuery = q.Encode()
	return u.String()
}
