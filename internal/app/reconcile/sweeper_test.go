package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"donation-app/internal/app/confirmation"
	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLister struct {
	rows   []donations.Donation
	before time.Time
	limit  int
	err    error
}

func (f *fakeLister) ListStalePending(_ context.Context, before time.Time, limit int) ([]donations.Donation, error) {
	f.before, f.limit = before, limit
	return f.rows, f.err
}

type fakeReconciler map[string]func() (confirmation.Result, error)

func (f fakeReconciler) Reconcile(_ context.Context, ref string) (confirmation.Result, error) {
	return f[ref]()
}

func result(status donations.Status) func() (confirmation.Result, error) {
	return func() (confirmation.Result, error) {
		return confirmation.Result{Donation: donations.Donation{Status: status}}, nil
	}
}

func TestSweep(t *testing.T) {
	lister := &fakeLister{rows: []donations.Donation{
		{OrderRef: "ORD-1"}, {OrderRef: "ORD-2"}, {OrderRef: "ORD-3"}, {OrderRef: "ORD-4"}, {OrderRef: "ORD-5"},
	}}
	rec := fakeReconciler{
		"ORD-1": result(donations.StatusCompleted),
		"ORD-2": result(donations.StatusFailed),
		"ORD-3": result(donations.StatusPending),
		"ORD-4": func() (confirmation.Result, error) {
			return confirmation.Result{}, fmt.Errorf("lookup: %w", gateway.ErrGatewayTimeout)
		},
		"ORD-5": func() (confirmation.Result, error) { return confirmation.Result{}, errors.New("db down") },
	}

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	s := NewSweeper(lister, rec, 15*time.Minute, 0, zap.NewNop())
	s.now = func() time.Time { return now }

	sum, err := s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Checked: 5, Completed: 1, Failed: 1, Pending: 2, Errors: 1}, sum)
	assert.Equal(t, now.Add(-15*time.Minute), lister.before)
	assert.Equal(t, 50, lister.limit)
}

func TestSweep_ListError(t *testing.T) {
	s := NewSweeper(&fakeLister{err: errors.New("db down")}, fakeReconciler{}, time.Minute, 10, zap.NewNop())
	_, err := s.Sweep(context.Background())
	assert.Error(t, err)
}

func TestScheduler_EmptyScheduleDisabled(t *testing.T) {
	s := NewScheduler(NewSweeper(&fakeLister{}, fakeReconciler{}, time.Minute, 10, zap.NewNop()), "", time.Minute, zap.NewNop())
	require.NoError(t, s.Start())
	<-s.Stop().Done()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(NewSweeper(&fakeLister{}, fakeReconciler{}, time.Minute, 10, zap.NewNop()), "every now and then", time.Minute, zap.NewNop())
	assert.Error(t, s.Start())
}
