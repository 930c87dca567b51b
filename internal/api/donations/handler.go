package donations

import (
	"context"
	"errors"
	"net/http"

	"donation-app/internal/app/intake"
	domain "donation-app/internal/domain/donations"
	"donation-app/internal/infra/gateway"
	"donation-app/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Starter interface {
	Start(ctx context.Context, req intake.Request) (intake.Result, error)
}

type Handler struct {
	intake Starter
	log    *zap.Logger
}

func NewHandler(s Starter, log *zap.Logger) *Handler {
	return &Handler{intake: s, log: log}
}

type createRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	DonorName  string          `json:"donor_name"`
	DonorEmail string          `json:"donor_email"`
	DonorPhone string          `json:"donor_phone"`
	DonorPAN   string          `json:"donor_pan"`
	Anonymous  bool            `json:"anonymous"`
	CampaignID string          `json:"campaign_id"`
	Recurrence string          `json:"recurrence"`
	Dedication string          `json:"dedication"`
	Gateway    string          `json:"gateway"`
}

type createResponse struct {
	DonationID  uuid.UUID         `json:"donation_id"`
	OrderID     string            `json:"order_id"`
	Status      domain.Status     `json:"status"`
	Gateway     string            `json:"gateway"`
	RedirectURL string            `json:"redirect_url"`
	Method      string            `json:"method"`
	Fields      map[string]string `json:"fields,omitempty"`
}

func (h *Handler) Create(c *gin.Context) {
	var body createRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid donation request"})
		return
	}

	req := intake.Request{
		Amount:     body.Amount,
		Currency:   body.Currency,
		DonorName:  body.DonorName,
		DonorEmail: body.DonorEmail,
		DonorPhone: body.DonorPhone,
		DonorPAN:   body.DonorPAN,
		Anonymous:  body.Anonymous,
		Recurrence: domain.Recurrence(body.Recurrence),
		Dedication: body.Dedication,
		Gateway:    body.Gateway,
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}
	if body.CampaignID != "" {
		id, err := uuid.Parse(body.CampaignID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign_id"})
			return
		}
		req.CampaignID = &id
	}

	res, err := h.intake.Start(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidDonation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, gateway.ErrUnknownGateway):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported payment gateway"})
		default:
			logger.Error(c.Request.Context(), h.log, "donation intake failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Could not start payment, please try again"})
		}
		return
	}

	c.JSON(http.StatusCreated, createResponse{
		DonationID:  res.Donation.ID,
		OrderID:     res.Donation.OrderRef,
		Status:      res.Donation.Status,
		Gateway:     res.Donation.Gateway,
		RedirectURL: res.Initiation.RedirectURL,
		Method:      res.Initiation.Method,
		Fields:      res.Initiation.Fields,
	})
}
