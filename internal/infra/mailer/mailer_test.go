package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSender_Send(t *testing.T) {
	s := NewSMTP(Config{Host: "smtp.example.org", Port: "587", From: "noreply@example.org", Password: "secret"})

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	err := s.Send(context.Background(), Message{To: []string{"donor@example.org"}, Subject: "Hello", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.org:587", gotAddr)
	assert.Equal(t, []string{"donor@example.org"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Hello\r\n")
	assert.Contains(t, string(gotMsg), "Content-Type: text/html; charset=UTF-8")
}

func TestSMTPSender_NotConfigured(t *testing.T) {
	s := NewSMTP(Config{})
	err := s.Send(context.Background(), Message{To: []string{"a@example.org"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSMTPSender_RejectsHeaderInjection(t *testing.T) {
	s := NewSMTP(Config{Host: "smtp.example.org", Port: "25", From: "noreply@example.org"})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return nil }

	err := s.Send(context.Background(), Message{To: []string{"a@example.org\r\nBcc: x@evil.test"}, Subject: "x"})
	assert.Error(t, err)
}

func TestSMTPSender_ContextCancel(t *testing.T) {
	s := NewSMTP(Config{Host: "smtp.example.org", Port: "25", From: "noreply@example.org"})
	release := make(chan struct{})
	defer close(release)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Send(ctx, Message{To: []string{"a@example.org"}, Subject: "x"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTemplates(t *testing.T) {
	d := DonationMail{
		OrgName:    "Seva Trust",
		OrgPAN:     "AAATS1234F",
		TaxNote:    "Eligible under 80G.",
		DonorName:  "Asha <script>",
		DonorPAN:   "ABCDE1234F",
		OrderRef:   "ORD-1",
		TxnID:      "403993715527",
		Amount:     "500.00",
		Currency:   "INR",
		PaidAt:     "16 Oct 2026",
		Dedication: "In memory of Ravi",
	}

	msg, err := Receipt("asha@example.org", d)
	require.NoError(t, err)
	assert.Equal(t, []string{"asha@example.org"}, msg.To)
	assert.Contains(t, msg.HTML, "INR 500.00")
	assert.Contains(t, msg.HTML, "Eligible under 80G.")
	assert.Contains(t, msg.HTML, "In memory of Ravi")
	assert.NotContains(t, msg.HTML, "<script>")

	cert, err := TaxCertificate("asha@example.org", d)
	require.NoError(t, err)
	assert.Contains(t, cert.HTML, "ABCDE1234F")
	assert.Contains(t, cert.Subject, "80G")

	admin, err := AdminNotice([]string{"ops@example.org"}, d)
	require.NoError(t, err)
	assert.Equal(t, "Donation received: INR 500.00 (ORD-1)", admin.Subject)
}
