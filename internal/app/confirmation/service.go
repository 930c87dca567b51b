package confirmation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/gateway"
	"donation-app/internal/infra/logger"
	"donation-app/internal/infra/metrics"

	"go.uber.org/zap"
)

var ErrGatewayMismatch = errors.New("callback gateway does not own this order")

type Ledger interface {
	FindByOrderRef(ctx context.Context, orderRef string) (*donations.Donation, error)
	Complete(ctx context.Context, orderRef, txnID string, paidAt time.Time) (bool, error)
	Fail(ctx context.Context, orderRef string, reason donations.FailureReason, txnID string) (bool, error)
}

type Gateways interface {
	Get(name string) (gateway.Gateway, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, d donations.Donation)
}

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeReplay    Outcome = "replay"
	OutcomeConflict  Outcome = "conflict"
	OutcomeHold      Outcome = "hold"
)

type Result struct {
	Donation donations.Donation
	Outcome  Outcome
}

type Service struct {
	ledger        Ledger
	gateways      Gateways
	dispatcher    Dispatcher
	log           *zap.Logger
	metrics       *metrics.Metrics
	lookupTimeout time.Duration
	now           func() time.Time
}

func NewService(
	ledger Ledger,
	gateways Gateways,
	dispatcher Dispatcher,
	log *zap.Logger,
	m *metrics.Metrics,
	lookupTimeout time.Duration,
) *Service {
	if lookupTimeout <= 0 {
		lookupTimeout = 10 * time.Second
	}
	return &Service{
		ledger:        ledger,
		gateways:      gateways,
		dispatcher:    dispatcher,
		log:           log,
		metrics:       m,
		lookupTimeout: lookupTimeout,
		now:           time.Now,
	}
}

// Confirm applies a verified gateway event to its donation. Only the caller
// whose conditional write moves the row out of PENDING triggers side effects.
func (s *Service) Confirm(ctx context.Context, gatewayName string, ev donations.Event) (Result, error) {
	d, err := s.ledger.FindByOrderRef(ctx, ev.OrderRef)
	if err != nil {
		return Result{}, err
	}
	if gatewayName != "" && d.Gateway != gatewayName {
		return Result{Donation: *d}, fmt.Errorf("%w: order %s belongs to %s, callback from %s",
			ErrGatewayMismatch, d.OrderRef, d.Gateway, gatewayName)
	}

	// At most one reload: after a lost write the row is terminal and Decide
	// can only answer replay or conflict.
	for attempt := 0; attempt < 2; attempt++ {
		decision := donations.Decide(*d, ev)

		var won bool
		switch decision.Action {
		case donations.ActionHold:
			return s.finish(ctx, *d, OutcomeHold), nil
		case donations.ActionReplay:
			return s.finish(ctx, *d, OutcomeReplay), nil
		case donations.ActionConflict:
			logger.Warn(ctx, s.log, "conflicting terminal state, first write kept",
				zap.String("order_ref", d.OrderRef),
				zap.String("stored_status", string(d.Status)),
				zap.String("event_status", string(ev.Status)),
				zap.String("event_txn_id", ev.GatewayTxnID))
			return s.finish(ctx, *d, OutcomeConflict), nil

		case donations.ActionComplete:
			paidAt := s.now().UTC()
			won, err = s.ledger.Complete(ctx, d.OrderRef, ev.GatewayTxnID, paidAt)
			if err != nil {
				return Result{}, fmt.Errorf("complete donation %s: %w", d.OrderRef, err)
			}
			if won {
				d.Status = donations.StatusCompleted
				d.PaidAt = &paidAt
				if ev.GatewayTxnID != "" {
					txn := ev.GatewayTxnID
					d.GatewayTxnID = &txn
				}
				logger.Info(ctx, s.log, "donation completed",
					zap.String("order_ref", d.OrderRef),
					zap.String("gateway", d.Gateway),
					zap.String("amount", d.Amount.StringFixed(2)),
					zap.String("currency", d.Currency))
				s.dispatcher.Dispatch(ctx, *d)
				return s.finish(ctx, *d, OutcomeCompleted), nil
			}

		case donations.ActionFail:
			won, err = s.ledger.Fail(ctx, d.OrderRef, decision.Reason, ev.GatewayTxnID)
			if err != nil {
				return Result{}, fmt.Errorf("fail donation %s: %w", d.OrderRef, err)
			}
			if won {
				reason := decision.Reason
				d.Status = donations.StatusFailed
				d.FailureReason = &reason
				if ev.GatewayTxnID != "" {
					txn := ev.GatewayTxnID
					d.GatewayTxnID = &txn
				}
				fields := []zap.Field{
					zap.String("order_ref", d.OrderRef),
					zap.String("reason", string(reason)),
				}
				if reason == donations.ReasonAmountMismatch {
					fields = append(fields,
						zap.String("expected", d.Amount.StringFixed(2)+" "+d.Currency),
						zap.String("reported", ev.Amount.StringFixed(2)+" "+ev.Currency))
					logger.Warn(ctx, s.log, "amount mismatch, donation failed", fields...)
				} else {
					logger.Info(ctx, s.log, "donation failed", fields...)
				}
				return s.finish(ctx, *d, OutcomeFailed), nil
			}
		}

		// Lost the race: somebody else moved the row. Reload and decide again.
		d, err = s.ledger.FindByOrderRef(ctx, ev.OrderRef)
		if err != nil {
			return Result{}, err
		}
	}
	return s.finish(ctx, *d, OutcomeReplay), nil
}

func (s *Service) finish(ctx context.Context, d donations.Donation, outcome Outcome) Result {
	s.metrics.Transition(d.Gateway, string(outcome))
	if outcome == OutcomeReplay || outcome == OutcomeHold {
		logger.Debug(ctx, s.log, "confirmation left donation unchanged",
			zap.String("order_ref", d.OrderRef),
			zap.String("status", string(d.Status)),
			zap.String("outcome", string(outcome)))
	}
	return Result{Donation: d, Outcome: outcome}
}

// Reconcile asks the owning gateway for the current outcome of a PENDING
// donation. A lookup timeout leaves the donation PENDING and returns
// gateway.ErrGatewayTimeout.
func (s *Service) Reconcile(ctx context.Context, orderRef string) (Result, error) {
	d, err := s.ledger.FindByOrderRef(ctx, orderRef)
	if err != nil {
		return Result{}, err
	}
	if d.Status.Terminal() {
		return Result{Donation: *d, Outcome: OutcomeReplay}, nil
	}

	gw, err := s.gateways.Get(d.Gateway)
	if err != nil {
		return Result{}, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	start := time.Now()
	ev, err := gw.LookupStatus(lookupCtx, d)
	if err != nil && errors.Is(lookupCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, gateway.ErrGatewayTimeout) {
		err = fmt.Errorf("%w: %v", gateway.ErrGatewayTimeout, err)
	}
	s.metrics.Lookup(gw.Name(), lookupResult(err), time.Since(start))
	if err != nil {
		logger.Warn(ctx, s.log, "gateway status lookup failed",
			zap.String("order_ref", d.OrderRef),
			zap.String("gateway", gw.Name()),
			zap.Error(err))
		return Result{Donation: *d, Outcome: OutcomeHold}, err
	}

	if ev.OrderRef != "" && ev.OrderRef != d.OrderRef {
		return Result{Donation: *d, Outcome: OutcomeHold},
			fmt.Errorf("gateway returned order %s for lookup of %s", ev.OrderRef, d.OrderRef)
	}
	ev.OrderRef = d.OrderRef

	if ev.Status == donations.GatewayPending {
		return s.finish(ctx, *d, OutcomeHold), nil
	}
	return s.Confirm(ctx, d.Gateway, ev)
}

func lookupResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gateway.ErrGatewayTimeout):
		return "timeout"
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
