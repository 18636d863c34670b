package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-core/pkg/enums"
)

// CheckoutAttempt is the durable record of one idempotent checkout commit.
type CheckoutAttempt struct {
	ID             uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	IdempotencyKey string                      `gorm:"column:idempotency_key;not null;uniqueIndex:idx_checkout_attempts_idempotency_key"`
	UserID         string                      `gorm:"column:user_id;not null;index:idx_checkout_attempts_user_id"`
	RequestHash    string                      `gorm:"column:request_hash;not null"`
	Status         enums.CheckoutAttemptStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	OrderID        *string                     `gorm:"column:order_id"`
	ReviewTotal    decimal.NullDecimal         `gorm:"column:review_total;type:numeric(14,2)"`
	CommittedTotal decimal.NullDecimal         `gorm:"column:committed_total;type:numeric(14,2)"`
	ReviewSkipped  bool                        `gorm:"column:review_skipped;not null;default:false"`
	TotalMismatch  bool                        `gorm:"column:total_mismatch;not null;default:false"`
	ErrorMessage   *string                     `gorm:"column:error_message"`
	CreatedAt      time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (CheckoutAttempt) TableName() string {
	return "checkout_attempts"
}

// All lists every model, used for SQLite auto-migration.
func All() []any {
	return []any{&CheckoutAttempt{}}
}
