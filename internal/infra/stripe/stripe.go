package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/breaker"
	"donation-app/internal/infra/gateway"

	"github.com/sony/gobreaker"
	stripego "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
)

const Name = "stripe"

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	ProductName   string
}

type Gateway struct {
	cfg     Config
	api     *client.API
	breaker *gobreaker.CircuitBreaker
}

// New builds the adapter around its own API client. backends may be nil to
// use the stripe-go defaults.
func New(cfg Config, backends *stripego.Backends) *Gateway {
	if cfg.ProductName == "" {
		cfg.ProductName = "Donation"
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &Gateway{
		cfg:     cfg,
		api:     api,
		breaker: breaker.New("stripe-lookup", 30*time.Second),
	}
}

func (g *Gateway) Name() string { return Name }

func (g *Gateway) BuildInitiation(*donations.Donation) (gateway.Initiation, error) {
	return gateway.Initiation{}, gateway.ErrSessionRequired
}

func (g *Gateway) CreateSession(ctx context.Context, d *donations.Donation) (gateway.Initiation, error) {
	unitAmount, err := ToMinorUnits(d.Amount, d.Currency)
	if err != nil {
		return gateway.Initiation{}, err
	}

	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		ClientReferenceID: stripego.String(d.OrderRef),
		SuccessURL:        stripego.String(withOrder(g.cfg.SuccessURL, d.OrderRef)),
		CancelURL:         stripego.String(withOrder(g.cfg.CancelURL, d.OrderRef)),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripego.String(strings.ToLower(d.Currency)),
					UnitAmount: stripego.Int64(unitAmount),
					ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripego.String(g.cfg.ProductName),
					},
				},
				Quantity: stripego.Int64(1),
			},
		},
	}
	if email := d.Email(); email != "" {
		params.CustomerEmail = stripego.String(email)
	}
	params.AddMetadata("donation_id", d.ID.String())
	params.AddMetadata("order_ref", d.OrderRef)
	params.Context = ctx

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return gateway.Initiation{}, fmt.Errorf("create checkout session: %w", err)
	}

	return gateway.Initiation{
		RedirectURL: session.URL,
		Method:      http.MethodGet,
		SessionID:   session.ID,
	}, nil
}

func (g *Gateway) VerifyCallback(raw gateway.RawCallback) (gateway.VerifiedCallback, error) {
	if len(raw.Body) == 0 {
		return gateway.VerifiedCallback{}, gateway.Malformed("empty payload")
	}
	sig := raw.Header.Get("Stripe-Signature")
	if sig == "" {
		return gateway.VerifiedCallback{}, gateway.Malformed("missing Stripe-Signature header")
	}

	event, err := webhook.ConstructEventWithOptions(raw.Body, sig, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrInvalidHeader) {
			return gateway.VerifiedCallback{}, gateway.Malformed("%v", err)
		}
		return gateway.VerifiedCallback{}, gateway.InvalidChecksum("%v", err)
	}

	var status donations.GatewayStatus
	switch event.Type {
	case "checkout.session.completed":
	case "checkout.session.async_payment_succeeded":
		status = donations.GatewaySuccess
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		status = donations.GatewayFailure
	default:
		return gateway.VerifiedCallback{}, fmt.Errorf("%w: %s", gateway.ErrUnhandledEvent, event.Type)
	}

	var session stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return gateway.VerifiedCallback{}, gateway.Malformed("decode checkout session: %v", err)
	}
	if status == "" {
		status = NormalizeSessionStatus(&session)
	}

	ev := fromSession(&session, status)
	if ev.OrderRef == "" {
		return gateway.VerifiedCallback{}, gateway.Malformed("session %s has no client_reference_id", session.ID)
	}
	return ev, nil
}

func (g *Gateway) LookupStatus(ctx context.Context, d *donations.Donation) (gateway.VerifiedCallback, error) {
	if d.GatewaySessionID == nil || *d.GatewaySessionID == "" {
		return gateway.VerifiedCallback{OrderRef: d.OrderRef, Status: donations.GatewayPending}, nil
	}

	session, err := breaker.Execute(g.breaker, func() (*stripego.CheckoutSession, error) {
		params := &stripego.CheckoutSessionParams{}
		params.Context = ctx
		return g.api.CheckoutSessions.Get(*d.GatewaySessionID, params)
	})
	if err != nil {
		return gateway.VerifiedCallback{}, gateway.ClassifyTransportError(err)
	}

	ev := fromSession(session, NormalizeSessionStatus(session))
	if ev.OrderRef == "" {
		ev.OrderRef = d.OrderRef
	}
	return ev, nil
}

func fromSession(s *stripego.CheckoutSession, status donations.GatewayStatus) gateway.VerifiedCallback {
	orderRef := s.ClientReferenceID
	if orderRef == "" && s.Metadata != nil {
		orderRef = s.Metadata["order_ref"]
	}

	txnID := s.ID
	if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
		txnID = s.PaymentIntent.ID
	}

	currency := strings.ToUpper(string(s.Currency))
	return gateway.VerifiedCallback{
		OrderRef:     orderRef,
		GatewayTxnID: txnID,
		Status:       status,
		Amount:       FromMinorUnits(s.AmountTotal, currency),
		Currency:     currency,
	}
}

func withOrder(base, orderRef string) string {
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "orderId=" + orderRef
}
