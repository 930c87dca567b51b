package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"

	"donation-app/internal/domain/donations"

	"github.com/sony/gobreaker"
)

var (
	ErrGatewayTimeout     = errors.New("gateway status lookup timed out")
	ErrGatewayUnavailable = errors.New("gateway temporarily unavailable")
	ErrUnhandledEvent     = errors.New("gateway event type not handled")
	ErrUnknownGateway     = errors.New("unknown payment gateway")
	ErrSessionRequired    = errors.New("gateway requires a server-created session")
)

type VerificationReason string

const (
	ReasonInvalidChecksum  VerificationReason = "INVALID_CHECKSUM"
	ReasonMalformedPayload VerificationReason = "MALFORMED_PAYLOAD"
)

// VerificationError carries the internal reason a callback was rejected.
// The detail must only ever be logged.
type VerificationError struct {
	Reason VerificationReason
	Detail string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("callback verification failed (%s): %s", e.Reason, e.Detail)
}

func Malformed(format string, args ...any) error {
	return &VerificationError{Reason: ReasonMalformedPayload, Detail: fmt.Sprintf(format, args...)}
}

func InvalidChecksum(format string, args ...any) error {
	return &VerificationError{Reason: ReasonInvalidChecksum, Detail: fmt.Sprintf(format, args...)}
}

// RawCallback is an untrusted inbound notification as received over HTTP.
type RawCallback struct {
	Fields map[string]string
	Body   []byte
	Header http.Header
}

// Initiation tells the browser how to hand the donor over to the gateway.
type Initiation struct {
	RedirectURL string            `json:"redirect_url"`
	Method      string            `json:"method"`
	Fields      map[string]string `json:"fields,omitempty"`
	SessionID   string            `json:"-"`
}

type VerifiedCallback = donations.Event

type Gateway interface {
	Name() string
	// BuildInitiation is pure: it never performs I/O.
	BuildInitiation(d *donations.Donation) (Initiation, error)
	VerifyCallback(raw RawCallback) (VerifiedCallback, error)
	LookupStatus(ctx context.Context, d *donations.Donation) (VerifiedCallback, error)
}

// SessionGateway is implemented by gateways that need a server-created
// checkout session before the donor can be redirected.
type SessionGateway interface {
	Gateway
	CreateSession(ctx context.Context, d *donations.Donation) (Initiation, error)
}

// OutcomeUnknown reports whether a lookup error means "we could not tell",
// in which case the donation must stay PENDING.
func OutcomeUnknown(err error) bool {
	return errors.Is(err, ErrGatewayTimeout) || errors.Is(err, ErrGatewayUnavailable)
}

// ClassifyTransportError maps deadline and breaker errors onto the
// gateway sentinels so callers can treat them as unknown outcomes.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return err
}

type Registry struct {
	gateways map[string]Gateway
	def      string
}

func NewRegistry(defaultName string, gateways ...Gateway) (*Registry, error) {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways)), def: defaultName}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	if _, ok := r.gateways[defaultName]; !ok {
		return nil, fmt.Errorf("%w: default %q is not configured", ErrUnknownGateway, defaultName)
	}
	return r, nil
}

// Get resolves a gateway by name; an empty name resolves to the default.
func (r *Registry) Get(name string) (Gateway, error) {
	if name == "" {
		name = r.def
	}
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return g, nil
}

func (r *Registry) Default() Gateway {
	return r.gateways[r.def]
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for n := range r.gateways {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
