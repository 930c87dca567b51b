package payu

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/gateway"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey  = "gtKFFx"
	testSalt = "eCwWELxi"
)

func newTestGateway(verifyURL string) *Gateway {
	return New(Config{
		Key:            testKey,
		Salt:           testSalt,
		CheckoutURL:    "https://test.payu.in/_payment",
		VerifyURL:      verifyURL,
		SuccessURL:     "https://api.example.org/payment/return/payu",
		FailureURL:     "https://api.example.org/payment/return/payu",
		AnonymousEmail: "anon@example.org",
	}, &http.Client{Timeout: 2 * time.Second})
}

func testDonation() *donations.Donation {
	name := "Asha Rao"
	email := "asha@example.org"
	return &donations.Donation{
		ID:         uuid.MustParse("0b7c1c52-0c1c-4c8e-9f55-6ad2b0f7f001"),
		OrderRef:   "ORD-1",
		Gateway:    Name,
		Amount:     decimal.RequireFromString("500"),
		Currency:   "INR",
		DonorName:  &name,
		DonorEmail: &email,
		Status:     donations.StatusPending,
	}
}

func signedCallback(status, amount string) map[string]string {
	f := map[string]string{
		"key":         testKey,
		"txnid":       "ORD-1",
		"amount":      amount,
		"productinfo": "Donation",
		"firstname":   "Asha",
		"email":       "asha@example.org",
		"status":      status,
		"mihpayid":    "403993715527",
		"udf1":        "0b7c1c52-0c1c-4c8e-9f55-6ad2b0f7f001",
	}
	f["hash"] = ResponseHash(testSalt, f)
	return f
}

func TestBuildInitiation_SignsForm(t *testing.T) {
	g := newTestGateway("")
	init, err := g.BuildInitiation(testDonation())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, init.Method)
	assert.Equal(t, "https://test.payu.in/_payment", init.RedirectURL)
	assert.Equal(t, "ORD-1", init.Fields["txnid"])
	assert.Equal(t, "500.00", init.Fields["amount"])
	assert.Equal(t, "Asha", init.Fields["firstname"])
	assert.Equal(t, RequestHash(testSalt, init.Fields), init.Fields["hash"])
	assert.Len(t, init.Fields["hash"], 128)
}

func TestBuildInitiation_AnonymousUsesFallbackEmail(t *testing.T) {
	g := newTestGateway("")
	d := testDonation()
	d.Anonymous = true
	d.DonorEmail = nil

	init, err := g.BuildInitiation(d)
	require.NoError(t, err)
	assert.Equal(t, "anon@example.org", init.Fields["email"])
	assert.Equal(t, "Anonymous", init.Fields["firstname"])
}

func TestBuildInitiation_RejectsNonINR(t *testing.T) {
	g := newTestGateway("")
	d := testDonation()
	d.Currency = "USD"

	_, err := g.BuildInitiation(d)
	assert.ErrorIs(t, err, donations.ErrInvalidDonation)
}

func TestVerifyCallback(t *testing.T) {
	g := newTestGateway("")

	t.Run("valid success", func(t *testing.T) {
		ev, err := g.VerifyCallback(gateway.RawCallback{Fields: signedCallback("success", "500.00")})
		require.NoError(t, err)
		assert.Equal(t, "ORD-1", ev.OrderRef)
		assert.Equal(t, donations.GatewaySuccess, ev.Status)
		assert.Equal(t, "403993715527", ev.GatewayTxnID)
		assert.True(t, ev.Amount.Equal(decimal.RequireFromString("500")))
	})

	t.Run("valid failure", func(t *testing.T) {
		ev, err := g.VerifyCallback(gateway.RawCallback{Fields: signedCallback("failure", "500.00")})
		require.NoError(t, err)
		assert.Equal(t, donations.GatewayFailure, ev.Status)
	})

	t.Run("tampered amount", func(t *testing.T) {
		f := signedCallback("success", "500.00")
		f["amount"] = "5.00"
		_, err := g.VerifyCallback(gateway.RawCallback{Fields: f})
		var verr *gateway.VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, gateway.ReasonInvalidChecksum, verr.Reason)
	})

	t.Run("missing hash", func(t *testing.T) {
		f := signedCallback("success", "500.00")
		delete(f, "hash")
		_, err := g.VerifyCallback(gateway.RawCallback{Fields: f})
		var verr *gateway.VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, gateway.ReasonMalformedPayload, verr.Reason)
	})

	t.Run("additional charges included in hash", func(t *testing.T) {
		f := signedCallback("success", "500.00")
		f["additionalCharges"] = "10.00"
		_, err := g.VerifyCallback(gateway.RawCallback{Fields: f})
		require.Error(t, err)

		f["hash"] = ResponseHash(testSalt, f)
		_, err = g.VerifyCallback(gateway.RawCallback{Fields: f})
		require.NoError(t, err)
	})

	t.Run("wrong merchant key", func(t *testing.T) {
		f := signedCallback("success", "500.00")
		f["key"] = "other"
		f["hash"] = ResponseHash(testSalt, f)
		_, err := g.VerifyCallback(gateway.RawCallback{Fields: f})
		var verr *gateway.VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, gateway.ReasonInvalidChecksum, verr.Reason)
	})
}

func TestLookupStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "verify_payment", r.PostForm.Get("command"))
		assert.Equal(t, verifyHash(testKey, "verify_payment", r.PostForm.Get("var1"), testSalt), r.PostForm.Get("hash"))

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("var1") {
		case "ORD-1":
			_, _ = w.Write([]byte(`{"status":1,"msg":"1 out of 1 Transactions Fetched Successfully","transaction_details":{"ORD-1":{"mihpayid":"403993715527","txnid":"ORD-1","amt":"500.00","status":"success"}}}`))
		default:
			_, _ = w.Write([]byte(`{"status":0,"msg":"0 out of 1 Transactions Fetched Successfully","transaction_details":{}}`))
		}
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)

	ev, err := g.LookupStatus(context.Background(), testDonation())
	require.NoError(t, err)
	assert.Equal(t, donations.GatewaySuccess, ev.Status)
	assert.Equal(t, "403993715527", ev.GatewayTxnID)
	assert.True(t, ev.Amount.Equal(decimal.RequireFromString("500")))

	unknown := testDonation()
	unknown.OrderRef = "ORD-2"
	ev, err = g.LookupStatus(context.Background(), unknown)
	require.NoError(t, err)
	assert.Equal(t, donations.GatewayPending, ev.Status)
}

func TestLookupStatus_TimeoutIsUnknownOutcome(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	g := newTestGateway(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.LookupStatus(ctx, testDonation())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrGatewayTimeout))
	assert.True(t, gateway.OutcomeUnknown(err))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, donations.GatewaySuccess, NormalizeStatus("success"))
	assert.Equal(t, donations.GatewayFailure, NormalizeStatus("failure"))
	assert.Equal(t, donations.GatewayFailure, NormalizeStatus("userCancelled"))
	assert.Equal(t, donations.GatewayPending, NormalizeStatus("pending"))
	assert.Equal(t, donations.GatewayPending, NormalizeStatus("Not Found"))
	assert.Equal(t, donations.GatewayPending, NormalizeStatus(""))
}
