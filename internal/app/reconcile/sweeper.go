package reconcile

import (
	"context"
	"errors"
	"time"

	"donation-app/internal/app/confirmation"
	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/gateway"

	"go.uber.org/zap"
)

type PendingLister interface {
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]donations.Donation, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, orderRef string) (confirmation.Result, error)
}

type Summary struct {
	Checked   int
	Completed int
	Failed    int
	Pending   int
	Errors    int
}

// Sweeper asks the gateways about donations that have been PENDING for too
// long, covering callbacks that never arrived.
type Sweeper struct {
	lister     PendingLister
	reconciler Reconciler
	minAge     time.Duration
	batch      int
	log        *zap.Logger
	now        func() time.Time
}

func NewSweeper(l PendingLister, r Reconciler, minAge time.Duration, batch int, log *zap.Logger) *Sweeper {
	if batch <= 0 {
		batch = 50
	}
	return &Sweeper{lister: l, reconciler: r, minAge: minAge, batch: batch, log: log, now: time.Now}
}

func (s *Sweeper) Sweep(ctx context.Context) (Summary, error) {
	stale, err := s.lister.ListStalePending(ctx, s.now().Add(-s.minAge), s.batch)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, d := range stale {
		if ctx.Err() != nil {
			break
		}
		sum.Checked++

		res, err := s.reconciler.Reconcile(ctx, d.OrderRef)
		if err != nil {
			if errors.Is(err, gateway.ErrGatewayTimeout) || errors.Is(err, gateway.ErrGatewayUnavailable) {
				sum.Pending++
			} else {
				sum.Errors++
			}
			s.log.Warn("reconcile failed", zap.String("order_ref", d.OrderRef), zap.Error(err))
			continue
		}

		switch res.Donation.Status {
		case donations.StatusCompleted:
			sum.Completed++
		case donations.StatusFailed:
			sum.Failed++
		default:
			sum.Pending++
		}
	}

	if sum.Checked > 0 {
		s.log.Info("reconciliation sweep finished",
			zap.Int("checked", sum.Checked),
			zap.Int("completed", sum.Completed),
			zap.Int("failed", sum.Failed),
			zap.Int("pending", sum.Pending),
			zap.Int("errors", sum.Errors))
	}
	return sum, nil
}
