package payu

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/breaker"
	"donation-app/internal/infra/gateway"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

const Name = "payu"

type Config struct {
	Key            string
	Salt           string
	CheckoutURL    string
	VerifyURL      string
	SuccessURL     string
	FailureURL     string
	ProductInfo    string
	AnonymousEmail string
}

type Gateway struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func New(cfg Config, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.ProductInfo == "" {
		cfg.ProductInfo = "Donation"
	}
	return &Gateway{
		cfg:     cfg,
		http:    httpClient,
		breaker: breaker.New("payu-verify", 30*time.Second),
	}
}

func (g *Gateway) Name() string { return Name }

func (g *Gateway) BuildInitiation(d *donations.Donation) (gateway.Initiation, error) {
	if d.Currency != "INR" {
		return gateway.Initiation{}, fmt.Errorf("%w: payu only accepts INR", donations.ErrInvalidDonation)
	}

	email := d.Email()
	if email == "" {
		email = g.cfg.AnonymousEmail
	}
	phone := ""
	if d.DonorPhone != nil {
		phone = *d.DonorPhone
	}

	fields := map[string]string{
		"key":         g.cfg.Key,
		"txnid":       d.OrderRef,
		"amount":      d.Amount.StringFixed(2),
		"productinfo": g.cfg.ProductInfo,
		"firstname":   firstName(d.DisplayName()),
		"email":       email,
		"phone":       phone,
		"surl":        g.cfg.SuccessURL,
		"furl":        g.cfg.FailureURL,
		"udf1":        d.ID.String(),
		"udf2":        "",
		"udf3":        "",
		"udf4":        "",
		"udf5":        "",
	}
	fields["hash"] = RequestHash(g.cfg.Salt, fields)

	return gateway.Initiation{
		RedirectURL: g.cfg.CheckoutURL,
		Method:      http.MethodPost,
		Fields:      fields,
	}, nil
}

func (g *Gateway) VerifyCallback(raw gateway.RawCallback) (gateway.VerifiedCallback, error) {
	f := raw.Fields
	if len(f) == 0 {
		return gateway.VerifiedCallback{}, gateway.Malformed("empty payload")
	}
	for _, required := range []string{"key", "txnid", "status", "amount", "hash"} {
		if strings.TrimSpace(f[required]) == "" {
			return gateway.VerifiedCallback{}, gateway.Malformed("missing field %s", required)
		}
	}

	amount, err := decimal.NewFromString(f["amount"])
	if err != nil {
		return gateway.VerifiedCallback{}, gateway.Malformed("unparsable amount %q", f["amount"])
	}

	expected := ResponseHash(g.cfg.Salt, f)
	got := strings.ToLower(strings.TrimSpace(f["hash"]))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return gateway.VerifiedCallback{}, gateway.InvalidChecksum("reverse hash mismatch for txnid %s", f["txnid"])
	}
	if subtle.ConstantTimeCompare([]byte(f["key"]), []byte(g.cfg.Key)) != 1 {
		return gateway.VerifiedCallback{}, gateway.InvalidChecksum("merchant key mismatch for txnid %s", f["txnid"])
	}

	return gateway.VerifiedCallback{
		OrderRef:     f["txnid"],
		GatewayTxnID: f["mihpayid"],
		Status:       NormalizeStatus(f["status"]),
		Amount:       amount,
		Currency:     "INR",
	}, nil
}

type verifyResponse struct {
	Status             int                          `json:"status"`
	Msg                string                       `json:"msg"`
	TransactionDetails map[string]transactionDetail `json:"transaction_details"`
}

type transactionDetail struct {
	MihPayID string `json:"mihpayid"`
	TxnID    string `json:"txnid"`
	Amount   string `json:"amt"`
	Status   string `json:"status"`
}

func (g *Gateway) LookupStatus(ctx context.Context, d *donations.Donation) (gateway.VerifiedCallback, error) {
	detail, err := breaker.Execute(g.breaker, func() (transactionDetail, error) {
		return g.verifyPayment(ctx, d.OrderRef)
	})
	if err != nil {
		return gateway.VerifiedCallback{}, gateway.ClassifyTransportError(err)
	}

	ev := gateway.VerifiedCallback{
		OrderRef:     d.OrderRef,
		GatewayTxnID: detail.MihPayID,
		Status:       NormalizeStatus(detail.Status),
		Currency:     "INR",
	}
	if ev.Status == donations.GatewaySuccess {
		amount, err := decimal.NewFromString(detail.Amount)
		if err != nil {
			return gateway.VerifiedCallback{}, fmt.Errorf("payu verify_payment returned amount %q: %w", detail.Amount, err)
		}
		ev.Amount = amount
	}
	return ev, nil
}

func (g *Gateway) verifyPayment(ctx context.Context, orderRef string) (transactionDetail, error) {
	const command = "verify_payment"
	form := url.Values{}
	form.Set("key", g.cfg.Key)
	form.Set("command", command)
	form.Set("var1", orderRef)
	form.Set("hash", verifyHash(g.cfg.Key, command, orderRef, g.cfg.Salt))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return transactionDetail{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return transactionDetail{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transactionDetail{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return transactionDetail{}, fmt.Errorf("payu verify_payment returned HTTP %d", resp.StatusCode)
	}

	var parsed verifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return transactionDetail{}, fmt.Errorf("payu verify_payment decode: %w", err)
	}

	detail, ok := parsed.TransactionDetails[orderRef]
	if !ok {
		// PayU has no record yet: the donor may still be on the checkout page.
		return transactionDetail{TxnID: orderRef, Status: "pending"}, nil
	}
	return detail, nil
}

// NormalizeStatus maps PayU's status vocabulary. Anything that is not a
// definite success or failure (pending, in progress, Not Found) stays PENDING.
func NormalizeStatus(s string) donations.GatewayStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "captured":
		return donations.GatewaySuccess
	case "failure", "failed", "cancel", "cancelled", "usercancelled", "dropped", "bounced":
		return donations.GatewayFailure
	default:
		return donations.GatewayPending
	}
}

func firstName(display string) string {
	if fields := strings.Fields(display); len(fields) > 0 {
		return fields[0]
	}
	return "Donor"
}
