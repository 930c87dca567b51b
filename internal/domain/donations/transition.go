package donations

import (
	"strings"

	"github.com/shopspring/decimal"
)

// GatewayStatus is the gateway outcome after normalization by an adapter.
type GatewayStatus string

const (
	GatewaySuccess GatewayStatus = "SUCCESS"
	GatewayFailure GatewayStatus = "FAILURE"
	GatewayPending GatewayStatus = "PENDING"
)

// Event is a verified gateway notification (callback or status lookup).
type Event struct {
	OrderRef     string
	GatewayTxnID string
	Status       GatewayStatus
	Amount       decimal.Decimal
	Currency     string
}

type Action string

const (
	ActionComplete Action = "complete"
	ActionFail     Action = "fail"
	ActionReplay   Action = "replay"
	ActionConflict Action = "conflict"
	ActionHold     Action = "hold"
)

type Decision struct {
	Action Action
	// Status is the status the donation has after the decision is applied.
	Status Status
	Reason FailureReason
	// FireEffects is true only for the PENDING -> COMPLETED transition.
	FireEffects bool
}

// Decide is the confirmation state machine. It has no side effects.
func Decide(current Donation, ev Event) Decision {
	if !current.Status.Terminal() {
		return decidePending(current, ev)
	}

	target := decidePending(current, ev)
	if target.Action == ActionHold {
		return Decision{Action: ActionReplay, Status: current.Status}
	}
	if target.Status != current.Status {
		return Decision{Action: ActionConflict, Status: current.Status}
	}
	if current.Status == StatusFailed && current.FailureReason != nil && *current.FailureReason != target.Reason {
		return Decision{Action: ActionConflict, Status: current.Status}
	}
	if current.Status == StatusCompleted && ev.GatewayTxnID != "" &&
		current.GatewayTxnID != nil && *current.GatewayTxnID != ev.GatewayTxnID {
		return Decision{Action: ActionConflict, Status: current.Status}
	}
	return Decision{Action: ActionReplay, Status: current.Status}
}

func decidePending(current Donation, ev Event) Decision {
	switch ev.Status {
	case GatewaySuccess:
		if !ev.Amount.Equal(current.Amount) ||
			(ev.Currency != "" && !strings.EqualFold(ev.Currency, current.Currency)) {
			return Decision{Action: ActionFail, Status: StatusFailed, Reason: ReasonAmountMismatch}
		}
		return Decision{Action: ActionComplete, Status: StatusCompleted, FireEffects: true}
	case GatewayFailure:
		return Decision{Action: ActionFail, Status: StatusFailed, Reason: ReasonGatewayDeclined}
	default:
		return Decision{Action: ActionHold, Status: StatusPending}
	}
}
