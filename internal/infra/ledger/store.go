package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-app/internal/domain/donations"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrDuplicateOrderRef = errors.New("order reference already exists")

// Store is the durable table of donations. Status changes only go through
// the conditional writes Complete and Fail.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, d *donations.Donation) error {
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateOrderRef
		}
		return fmt.Errorf("failed to insert donation: %w", err)
	}
	return nil
}

func (s *Store) FindByOrderRef(ctx context.Context, orderRef string) (*donations.Donation, error) {
	var d donations.Donation
	err := s.db.WithContext(ctx).Where("order_ref = ?", orderRef).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, donations.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load donation %s: %w", orderRef, err)
	}
	return &d, nil
}

func (s *Store) SetGatewaySession(ctx context.Context, orderRef, sessionID string) error {
	res := s.db.WithContext(ctx).Model(&donations.Donation{}).
		Where("order_ref = ?", orderRef).
		Update("gateway_session_id", sessionID)
	if res.Error != nil {
		return fmt.Errorf("failed to store gateway session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return donations.ErrOrderNotFound
	}
	return nil
}

// Complete moves a PENDING donation to COMPLETED. It reports false when the
// row was no longer PENDING (another delivery won the race).
func (s *Store) Complete(ctx context.Context, orderRef, txnID string, paidAt time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":     string(donations.StatusCompleted),
		"paid_at":    paidAt,
		"updated_at": time.Now(),
	}
	if txnID != "" {
		updates["gateway_txn_id"] = txnID
	}
	return s.transition(ctx, orderRef, updates)
}

// Fail moves a PENDING donation to FAILED with the given reason.
func (s *Store) Fail(ctx context.Context, orderRef string, reason donations.FailureReason, txnID string) (bool, error) {
	updates := map[string]interface{}{
		"status":         string(donations.StatusFailed),
		"failure_reason": string(reason),
		"updated_at":     time.Now(),
	}
	if txnID != "" {
		updates["gateway_txn_id"] = txnID
	}
	return s.transition(ctx, orderRef, updates)
}

func (s *Store) transition(ctx context.Context, orderRef string, updates map[string]interface{}) (bool, error) {
	res := s.db.WithContext(ctx).Model(&donations.Donation{}).
		Where("order_ref = ? AND status = ?", orderRef, string(donations.StatusPending)).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition donation %s: %w", orderRef, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) MarkReceiptSent(ctx context.Context, orderRef string) error {
	res := s.db.WithContext(ctx).Model(&donations.Donation{}).
		Where("order_ref = ? AND status = ?", orderRef, string(donations.StatusCompleted)).
		Update("receipt_sent", true)
	if res.Error != nil {
		return fmt.Errorf("failed to flag receipt: %w", res.Error)
	}
	return nil
}

func (s *Store) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]donations.Donation, error) {
	var out []donations.Donation
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(donations.StatusPending), createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending donations: %w", err)
	}
	return out, nil
}

func (s *Store) RecordCallback(ctx context.Context, ev *donations.CallbackEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("failed to record callback: %w", err)
	}
	return nil
}

func (s *Store) CallbackHistory(ctx context.Context, orderRef string) ([]donations.CallbackEvent, error) {
	var out []donations.CallbackEvent
	err := s.db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		Order("received_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load callback history: %w", err)
	}
	return out, nil
}

type StatusTotal struct {
	Status   donations.Status `json:"status"`
	Currency string           `json:"currency"`
	Count    int64            `json:"count"`
	Amount   decimal.Decimal  `json:"amount"`
}

// Totals aggregates donations by status and currency.
func (s *Store) Totals(ctx context.Context) ([]StatusTotal, error) {
	var out []StatusTotal
	err := s.db.WithContext(ctx).Model(&donations.Donation{}).
		Select("status, currency, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("status, currency").
		Order("status, currency").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate donations: %w", err)
	}
	return out, nil
}
