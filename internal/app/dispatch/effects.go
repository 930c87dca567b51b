package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-app/internal/domain/donations"
	"donation-app/internal/infra/mailer"
	"donation-app/internal/infra/rabbitmq"

	"github.com/google/uuid"
)

type Org struct {
	Name    string
	PAN     string
	RegNo   string
	TaxNote string
}

type ReceiptMarker interface {
	MarkReceiptSent(ctx context.Context, orderRef string) error
}

type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

func mailData(org Org, d donations.Donation) mailer.DonationMail {
	m := mailer.DonationMail{
		OrgName:     org.Name,
		OrgPAN:      org.PAN,
		Org80GRegNo: org.RegNo,
		TaxNote:     org.TaxNote,
		DonorName:   d.DisplayName(),
		DonorEmail:  d.Email(),
		DonorPAN:    d.PAN(),
		Anonymous:   d.Anonymous,
		OrderRef:    d.OrderRef,
		Amount:      d.Amount.StringFixed(2),
		Currency:    d.Currency,
		Gateway:     d.Gateway,
		Recurrence:  string(d.Recurrence),
	}
	if d.GatewayTxnID != nil {
		m.TxnID = *d.GatewayTxnID
	}
	if d.PaidAt != nil {
		m.PaidAt = d.PaidAt.Format("02 Jan 2006 15:04 MST")
	}
	if d.Dedication != nil {
		m.Dedication = *d.Dedication
	}
	return m
}

type Receipt struct {
	Mail   mailer.Sender
	Ledger ReceiptMarker
	Org    Org
}

func (Receipt) Name() string { return "receipt_email" }

func (e Receipt) Apply(ctx context.Context, d donations.Donation) error {
	to := d.Email()
	if to == "" {
		return ErrSkipped
	}
	msg, err := mailer.Receipt(to, mailData(e.Org, d))
	if err != nil {
		return err
	}
	if err := e.Mail.Send(ctx, msg); err != nil {
		return err
	}
	if err := e.Ledger.MarkReceiptSent(ctx, d.OrderRef); err != nil {
		return fmt.Errorf("receipt sent but flag not stored: %w", err)
	}
	return nil
}

// TaxCertificate mails the 80G certificate. Only INR donations from donors
// who gave a PAN qualify.
type TaxCertificate struct {
	Mail mailer.Sender
	Org  Org
}

func (TaxCertificate) Name() string { return "tax_certificate" }

func (e TaxCertificate) Apply(ctx context.Context, d donations.Donation) error {
	if d.Currency != "INR" || d.Email() == "" || d.PAN() == "" {
		return ErrSkipped
	}
	msg, err := mailer.TaxCertificate(d.Email(), mailData(e.Org, d))
	if err != nil {
		return err
	}
	return e.Mail.Send(ctx, msg)
}

type AdminNotice struct {
	Mail       mailer.Sender
	Recipients []string
	Org        Org
}

func (AdminNotice) Name() string { return "admin_email" }

func (e AdminNotice) Apply(ctx context.Context, d donations.Donation) error {
	if len(e.Recipients) == 0 {
		return ErrSkipped
	}
	msg, err := mailer.AdminNotice(e.Recipients, mailData(e.Org, d))
	if err != nil {
		return err
	}
	return e.Mail.Send(ctx, msg)
}

type StaffAlert struct {
	WhatsApp TextSender
	Numbers  []string
}

func (StaffAlert) Name() string { return "whatsapp_alert" }

func (e StaffAlert) Apply(ctx context.Context, d donations.Donation) error {
	if len(e.Numbers) == 0 {
		return ErrSkipped
	}
	body := fmt.Sprintf("New donation: %s %s from %s (%s)", d.Currency, d.Amount.StringFixed(2), d.DisplayName(), d.OrderRef)

	var errs []error
	for _, n := range e.Numbers {
		if err := e.WhatsApp.SendText(ctx, n, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

type CompletedEvent struct {
	DonationID   uuid.UUID  `json:"donation_id"`
	OrderRef     string     `json:"order_ref"`
	Amount       string     `json:"amount"`
	Currency     string     `json:"currency"`
	Gateway      string     `json:"gateway"`
	GatewayTxnID string     `json:"gateway_txn_id,omitempty"`
	CampaignID   *uuid.UUID `json:"campaign_id,omitempty"`
	Recurrence   string     `json:"recurrence"`
	Anonymous    bool       `json:"anonymous"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

type PublishEvent struct {
	Publisher rabbitmq.Publisher
}

func (PublishEvent) Name() string { return "donation_event" }

func (e PublishEvent) Apply(ctx context.Context, d donations.Donation) error {
	ev := CompletedEvent{
		DonationID: d.ID,
		OrderRef:   d.OrderRef,
		Amount:     d.Amount.StringFixed(2),
		Currency:   d.Currency,
		Gateway:    d.Gateway,
		CampaignID: d.CampaignID,
		Recurrence: string(d.Recurrence),
		Anonymous:  d.Anonymous,
		PaidAt:     d.PaidAt,
	}
	if d.GatewayTxnID != nil {
		ev.GatewayTxnID = *d.GatewayTxnID
	}
	return e.Publisher.Publish(ctx, rabbitmq.RoutingDonationCompleted, ev)
}
