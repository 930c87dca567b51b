package donations

import (
	"time"

	"gorm.io/datatypes"
)

// CallbackEvent is the audit trail of inbound gateway notifications. It never drives state.
type CallbackEvent struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	Gateway    string            `gorm:"type:varchar(20);not null" json:"gateway"`
	OrderRef   string            `gorm:"column:order_ref;type:varchar(32);index" json:"order_ref"`
	Source     string            `gorm:"type:varchar(20);not null" json:"source"`
	Outcome    string            `gorm:"type:varchar(40);not null" json:"outcome"`
	Fields     datatypes.JSONMap `gorm:"type:jsonb" json:"fields"`
	ReceivedAt time.Time         `gorm:"not null" json:"received_at"`
}
