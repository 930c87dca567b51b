package payments

import (
	"context"

	"donation-app/internal/app/confirmation"
	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/gateway"
	"donation-app/internal/infra/metrics"

	"go.uber.org/zap"
)

type Confirmer interface {
	Confirm(ctx context.Context, gatewayName string, ev donations.Event) (confirmation.Result, error)
	Reconcile(ctx context.Context, orderRef string) (confirmation.Result, error)
	Status(ctx context.Context, orderRef string) (confirmation.StatusView, error)
}

type Gateways interface {
	Get(name string) (gateway.Gateway, error)
}

type CallbackRecorder interface {
	RecordCallback(ctx context.Context, ev *donations.CallbackEvent) error
}

// DonorURLs are the front-end pages the browser lands on after checkout.
type DonorURLs struct {
	Success string
	Failure string
	Pending string
}

type Handler struct {
	confirm  Confirmer
	gateways Gateways
	audit    CallbackRecorder
	urls     DonorURLs
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewHandler(confirm Confirmer, gateways Gateways, audit CallbackRecorder, urls DonorURLs, m *metrics.Metrics, log *zap.Logger) *Handler {
	return &Handler{confirm: confirm, gateways: gateways, audit: audit, urls: urls, metrics: m, log: log}
}
