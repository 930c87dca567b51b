package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/logger"
	"donation-app/internal/infra/metrics"

	"go.uber.org/zap"
)

// ErrSkipped is returned by an effect that does not apply to a donation.
var ErrSkipped = errors.New("effect not applicable")

type Effect interface {
	Name() string
	Apply(ctx context.Context, d donations.Donation) error
}

type Report struct {
	Succeeded []string
	Skipped   []string
	Failed    map[string]error
}

type Dispatcher struct {
	effects []Effect
	log     *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

func New(log *zap.Logger, m *metrics.Metrics, timeout time.Duration, effects ...Effect) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{effects: effects, log: log, metrics: m, timeout: timeout}
}

// Dispatch returns immediately. Effects run detached from the caller's
// cancellation, bounded by the dispatcher timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, don donations.Donation) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		d.Run(runCtx, don)
	}()
}

// Wait blocks until every dispatched run has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Run applies every effect concurrently. One effect failing or panicking
// never stops the others.
func (d *Dispatcher) Run(ctx context.Context, don donations.Donation) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = Report{Failed: map[string]error{}}
	)

	for _, e := range d.effects {
		wg.Add(1)
		go func(e Effect) {
			defer wg.Done()
			err := d.apply(ctx, e, don)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Succeeded = append(report.Succeeded, e.Name())
			case errors.Is(err, ErrSkipped):
				report.Skipped = append(report.Skipped, e.Name())
			default:
				report.Failed[e.Name()] = err
			}
		}(e)
	}
	wg.Wait()

	if len(report.Failed) > 0 {
		logger.Warn(ctx, d.log, "side effects finished with failures",
			zap.String("order_ref", don.OrderRef),
			zap.Strings("succeeded", report.Succeeded),
			zap.Int("failed", len(report.Failed)))
	}
	return report
}

func (d *Dispatcher) apply(ctx context.Context, e Effect, don donations.Donation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if errors.Is(err, ErrSkipped) {
			return
		}
		d.metrics.SideEffect(e.Name(), err)
		if err != nil {
			logger.Error(ctx, d.log, "side effect failed",
				zap.String("effect", e.Name()),
				zap.String("order_ref", don.OrderRef),
				zap.Error(err))
		}
	}()
	return e.Apply(ctx, don)
}
