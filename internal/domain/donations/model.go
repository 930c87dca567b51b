package donations

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type FailureReason string

const (
	ReasonAmountMismatch  FailureReason = "AMOUNT_MISMATCH"
	ReasonGatewayDeclined FailureReason = "GATEWAY_DECLINED"
	ReasonSessionFailed   FailureReason = "SESSION_FAILED"
)

type Recurrence string

const (
	RecurrenceNone      Recurrence = "none"
	RecurrenceMonthly   Recurrence = "monthly"
	RecurrenceQuarterly Recurrence = "quarterly"
	RecurrenceYearly    Recurrence = "yearly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceMonthly, RecurrenceQuarterly, RecurrenceYearly:
		return true
	}
	return false
}

type Donation struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderRef         string          `gorm:"column:order_ref;type:varchar(32);not null;uniqueIndex:idx_donations_order_ref" json:"order_ref"`
	Gateway          string          `gorm:"type:varchar(20);not null" json:"gateway"`
	GatewaySessionID *string         `gorm:"column:gateway_session_id;type:varchar(255)" json:"-"`
	GatewayTxnID     *string         `gorm:"column:gateway_txn_id;type:varchar(255)" json:"gateway_txn_id,omitempty"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency         string          `gorm:"type:varchar(3);not null" json:"currency"`

	DonorName  *string `gorm:"column:donor_name" json:"donor_name,omitempty"`
	DonorEmail *string `gorm:"column:donor_email" json:"donor_email,omitempty"`
	DonorPhone *string `gorm:"column:donor_phone" json:"donor_phone,omitempty"`
	DonorPAN   *string `gorm:"column:donor_pan;type:varchar(10)" json:"-"`
	Anonymous  bool    `gorm:"not null;default:false" json:"anonymous"`

	CampaignID *uuid.UUID `gorm:"column:campaign_id;type:uuid;index" json:"campaign_id,omitempty"`
	Recurrence Recurrence `gorm:"type:varchar(20);not null;default:'none'" json:"recurrence"`
	Dedication *string    `gorm:"type:text" json:"dedication,omitempty"`

	Status        Status         `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	FailureReason *FailureReason `gorm:"column:failure_reason;type:varchar(40)" json:"-"`
	PaidAt        *time.Time     `gorm:"column:paid_at" json:"paid_at,omitempty"`
	ReceiptSent   bool           `gorm:"column:receipt_sent;not null;default:false" json:"receipt_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Donation) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.OrderRef == "" {
		d.OrderRef = NewOrderRef()
	}
	if d.Status == "" {
		d.Status = StatusPending
	}
	if d.Recurrence == "" {
		d.Recurrence = RecurrenceNone
	}
	return nil
}

// NewOrderRef returns "ORD-" plus 16 upper-case hex chars (PayU caps txnid at 25).
func NewOrderRef() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:16])
}

func (d *Donation) DisplayName() string {
	if d.Anonymous || d.DonorName == nil || strings.TrimSpace(*d.DonorName) == "" {
		return "Anonymous donor"
	}
	return *d.DonorName
}

func (d *Donation) Email() string {
	if d.DonorEmail == nil {
		return ""
	}
	return strings.TrimSpace(*d.DonorEmail)
}

func (d *Donation) PAN() string {
	if d.DonorPAN == nil {
		return ""
	}
	return strings.TrimSpace(*d.DonorPAN)
}
