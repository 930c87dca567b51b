package intake

import (
	"context"
	"errors"
	"testing"

	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/gateway"
	"donation-app/internal/infra/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memLedger struct {
	created  []donations.Donation
	sessions map[string]string
	failed   map[string]donations.FailureReason
	dupes    int
}

func (l *memLedger) Create(_ context.Context, d *donations.Donation) error {
	if l.dupes > 0 {
		l.dupes--
		return ledger.ErrDuplicateOrderRef
	}
	l.created = append(l.created, *d)
	return nil
}

func (l *memLedger) SetGatewaySession(_ context.Context, ref, sid string) error {
	if l.sessions == nil {
		l.sessions = map[string]string{}
	}
	l.sessions[ref] = sid
	return nil
}

func (l *memLedger) Fail(_ context.Context, ref string, reason donations.FailureReason, _ string) (bool, error) {
	if l.failed == nil {
		l.failed = map[string]donations.FailureReason{}
	}
	l.failed[ref] = reason
	return true, nil
}

type formGateway struct{ name string }

func (g formGateway) Name() string { return g.name }
func (g formGateway) BuildInitiation(d *donations.Donation) (gateway.Initiation, error) {
	if d.Currency != "INR" {
		return gateway.Initiation{}, donations.ErrInvalidDonation
	}
	return gateway.Initiation{RedirectURL: "https://pay.example/checkout", Method: "POST",
		Fields: map[string]string{"txnid": d.OrderRef}}, nil
}
func (g formGateway) VerifyCallback(gateway.RawCallback) (gateway.VerifiedCallback, error) {
	return gateway.VerifiedCallback{}, nil
}
func (g formGateway) LookupStatus(context.Context, *donations.Donation) (gateway.VerifiedCallback, error) {
	return gateway.VerifiedCallback{}, nil
}

type sessionGateway struct {
	formGateway
	err error
}

func (g sessionGateway) BuildInitiation(*donations.Donation) (gateway.Initiation, error) {
	return gateway.Initiation{}, gateway.ErrSessionRequired
}
func (g sessionGateway) CreateSession(_ context.Context, d *donations.Donation) (gateway.Initiation, error) {
	if g.err != nil {
		return gateway.Initiation{}, g.err
	}
	return gateway.Initiation{RedirectURL: "https://checkout.example/" + d.OrderRef, Method: "GET", SessionID: "cs_" + d.OrderRef}, nil
}

func newService(t *testing.T, l Ledger, gws ...gateway.Gateway) *Service {
	t.Helper()
	reg, err := gateway.NewRegistry(gws[0].Name(), gws...)
	require.NoError(t, err)
	return NewService(l, reg, decimal.NewFromInt(100000), zap.NewNop())
}

func TestStart_FormGateway(t *testing.T) {
	l := &memLedger{}
	svc := newService(t, l, formGateway{name: "payu"})

	res, err := svc.Start(context.Background(), Request{
		Amount:     decimal.RequireFromString("500"),
		Currency:   "inr",
		DonorName:  " Asha Rao ",
		DonorEmail: "Asha@Example.org",
		DonorPAN:   "abcde1234f",
	})
	require.NoError(t, err)

	require.Len(t, l.created, 1)
	stored := l.created[0]
	assert.Equal(t, donations.StatusPending, stored.Status)
	assert.Equal(t, "INR", stored.Currency)
	assert.Equal(t, "asha@example.org", *stored.DonorEmail)
	assert.Equal(t, "ABCDE1234F", *stored.DonorPAN)
	assert.Equal(t, "Asha Rao", *stored.DonorName)
	assert.Equal(t, donations.RecurrenceNone, stored.Recurrence)
	assert.Equal(t, stored.OrderRef, res.Initiation.Fields["txnid"])
	assert.Regexp(t, `^ORD-[0-9A-F]{16}$`, res.Donation.OrderRef)
}

func TestStart_RejectsInvalidBeforeInsert(t *testing.T) {
	l := &memLedger{}
	svc := newService(t, l, formGateway{name: "payu"})

	_, err := svc.Start(context.Background(), Request{Amount: decimal.RequireFromString("-1"), Currency: "INR"})
	assert.ErrorIs(t, err, donations.ErrInvalidDonation)

	_, err = svc.Start(context.Background(), Request{Amount: decimal.RequireFromString("10"), Currency: "USD"})
	assert.ErrorIs(t, err, donations.ErrInvalidDonation)

	_, err = svc.Start(context.Background(), Request{Amount: decimal.RequireFromString("100001"), Currency: "INR"})
	assert.ErrorIs(t, err, donations.ErrInvalidDonation)

	assert.Empty(t, l.created)
}

func TestStart_UnknownGateway(t *testing.T) {
	svc := newService(t, &memLedger{}, formGateway{name: "payu"})
	_, err := svc.Start(context.Background(), Request{Amount: decimal.NewFromInt(1), Currency: "INR", Gateway: "paypal"})
	assert.ErrorIs(t, err, gateway.ErrUnknownGateway)
}

func TestStart_RetriesOrderRefCollision(t *testing.T) {
	l := &memLedger{dupes: 1}
	svc := newService(t, l, formGateway{name: "payu"})

	res, err := svc.Start(context.Background(), Request{Amount: decimal.NewFromInt(100), Currency: "INR"})
	require.NoError(t, err)
	require.Len(t, l.created, 1)
	assert.Equal(t, l.created[0].OrderRef, res.Initiation.Fields["txnid"])
}

func TestStart_SessionGatewayStoresSession(t *testing.T) {
	l := &memLedger{}
	svc := newService(t, l, formGateway{name: "payu"}, sessionGateway{formGateway: formGateway{name: "stripe"}})

	res, err := svc.Start(context.Background(), Request{Amount: decimal.NewFromInt(25), Currency: "USD", Gateway: "Stripe"})
	require.NoError(t, err)

	assert.Equal(t, "stripe", res.Donation.Gateway)
	assert.Equal(t, "cs_"+res.Donation.OrderRef, l.sessions[res.Donation.OrderRef])
	assert.Equal(t, "GET", res.Initiation.Method)
}

func TestStart_SessionFailureClosesRow(t *testing.T) {
	l := &memLedger{}
	svc := newService(t, l, sessionGateway{formGateway: formGateway{name: "stripe"}, err: errors.New("stripe down")})

	res, err := svc.Start(context.Background(), Request{Amount: decimal.NewFromInt(25), Currency: "USD"})
	require.Error(t, err)
	require.Len(t, l.created, 1)
	assert.Empty(t, l.sessions)

	ref := l.created[0].OrderRef
	assert.Equal(t, donations.ReasonSessionFailed, l.failed[ref])
	assert.Equal(t, donations.StatusFailed, res.Donation.Status)
}

func TestStart_RejectsFractionalZeroDecimalAmount(t *testing.T) {
	l := &memLedger{}
	svc := newService(t, l, sessionGateway{formGateway: formGateway{name: "stripe"}})

	_, err := svc.Start(context.Background(), Request{Amount: decimal.RequireFromString("100.50"), Currency: "JPY"})
	assert.ErrorIs(t, err, donations.ErrInvalidDonation)
	assert.Empty(t, l.created)

	res, err := svc.Start(context.Background(), Request{Amount: decimal.RequireFromString("101"), Currency: "JPY"})
	require.NoError(t, err)
	assert.Equal(t, "JPY", res.Donation.Currency)
}
