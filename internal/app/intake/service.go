package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/gateway"
	"donation-app/internal/infra/ledger"
	"donation-app/internal/infra/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxRefAttempts = 3

type Request struct {
	Amount     decimal.Decimal
	Currency   string
	DonorName  string
	DonorEmail string
	DonorPhone string
	DonorPAN   string
	Anonymous  bool
	CampaignID *uuid.UUID
	Recurrence donations.Recurrence
	Dedication string
	Gateway    string
}

type Result struct {
	Donation   donations.Donation
	Initiation gateway.Initiation
}

type Ledger interface {
	Create(ctx context.Context, d *donations.Donation) error
	SetGatewaySession(ctx context.Context, orderRef, sessionID string) error
	Fail(ctx context.Context, orderRef string, reason donations.FailureReason, txnID string) (bool, error)
}

type Gateways interface {
	Get(name string) (gateway.Gateway, error)
}

type Service struct {
	ledger    Ledger
	gateways  Gateways
	maxAmount decimal.Decimal
	log       *zap.Logger
}

func NewService(l Ledger, gws Gateways, maxAmount decimal.Decimal, log *zap.Logger) *Service {
	return &Service{ledger: l, gateways: gws, maxAmount: maxAmount, log: log}
}

// Start records a PENDING donation and returns what the donor's browser
// needs to continue at the gateway.
func (s *Service) Start(ctx context.Context, req Request) (Result, error) {
	gw, err := s.gateways.Get(strings.ToLower(strings.TrimSpace(req.Gateway)))
	if err != nil {
		return Result{}, err
	}

	d := newDonation(req, gw.Name())
	if err := d.Validate(s.maxAmount); err != nil {
		return Result{}, err
	}

	sessionGW, needsSession := gw.(gateway.SessionGateway)

	var init gateway.Initiation
	for attempt := 1; ; attempt++ {
		d.ID = uuid.New()
		d.OrderRef = donations.NewOrderRef()

		if !needsSession {
			// Pure: an unacceptable donation never reaches the ledger.
			if init, err = gw.BuildInitiation(d); err != nil {
				return Result{}, err
			}
		}

		err = s.ledger.Create(ctx, d)
		if err == nil {
			break
		}
		if !errors.Is(err, ledger.ErrDuplicateOrderRef) || attempt == maxRefAttempts {
			return Result{}, err
		}
		logger.Warn(ctx, s.log, "order reference collision, regenerating", zap.String("order_ref", d.OrderRef))
	}

	if needsSession {
		init, err = sessionGW.CreateSession(ctx, d)
		if err != nil {
			logger.Error(ctx, s.log, "gateway session creation failed",
				zap.String("order_ref", d.OrderRef), zap.String("gateway", gw.Name()), zap.Error(err))
			// No session means nothing at the gateway can ever settle this order.
			if _, ferr := s.ledger.Fail(context.WithoutCancel(ctx), d.OrderRef, donations.ReasonSessionFailed, ""); ferr != nil {
				logger.Error(ctx, s.log, "failed to close donation without session",
					zap.String("order_ref", d.OrderRef), zap.Error(ferr))
			} else {
				reason := donations.ReasonSessionFailed
				d.Status = donations.StatusFailed
				d.FailureReason = &reason
			}
			return Result{Donation: *d}, fmt.Errorf("start %s checkout: %w", gw.Name(), err)
		}
		if err := s.ledger.SetGatewaySession(ctx, d.OrderRef, init.SessionID); err != nil {
			return Result{Donation: *d}, err
		}
		sid := init.SessionID
		d.GatewaySessionID = &sid
	}

	logger.Info(ctx, s.log, "donation initiated",
		zap.String("order_ref", d.OrderRef),
		zap.String("gateway", gw.Name()),
		zap.String("amount", d.Amount.StringFixed(2)),
		zap.String("currency", d.Currency))

	return Result{Donation: *d, Initiation: init}, nil
}

func newDonation(req Request, gatewayName string) *donations.Donation {
	recurrence := req.Recurrence
	if recurrence == "" {
		recurrence = donations.RecurrenceNone
	}
	return &donations.Donation{
		Gateway:    gatewayName,
		Amount:     req.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(req.Currency)),
		DonorName:  optional(req.DonorName),
		DonorEmail: optional(strings.ToLower(req.DonorEmail)),
		DonorPhone: optional(req.DonorPhone),
		DonorPAN:   optional(strings.ToUpper(req.DonorPAN)),
		Anonymous:  req.Anonymous,
		CampaignID: req.CampaignID,
		Recurrence: recurrence,
		Dedication: optional(req.Dedication),
		Status:     donations.StatusPending,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
