package confirmation

import (
	"context"
	"time"

	"donation-app/internal/domain/donations"
)

// StatusView is what a donor polling for their order may see. It never
// carries the failure reason or donor details.
type StatusView struct {
	OrderID      string           `json:"order_id"`
	Status       donations.Status `json:"status"`
	Amount       string           `json:"amount"`
	Currency     string           `json:"currency"`
	GatewayTxnID *string          `json:"gateway_txn_id,omitempty"`
	PaidAt       *time.Time       `json:"paid_at,omitempty"`
}

func (s *Service) Status(ctx context.Context, orderRef string) (StatusView, error) {
	d, err := s.ledger.FindByOrderRef(ctx, orderRef)
	if err != nil {
		return StatusView{}, err
	}
	return NewStatusView(*d), nil
}

func NewStatusView(d donations.Donation) StatusView {
	v := StatusView{
		OrderID:  d.OrderRef,
		Status:   d.Status,
		Amount:   d.Amount.StringFixed(2),
		Currency: d.Currency,
	}
	if d.Status == donations.StatusCompleted {
		v.GatewayTxnID = d.GatewayTxnID
		v.PaidAt = d.PaidAt
	}
	return v
}
