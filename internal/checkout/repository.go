package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-core/pkg/db"
	"github.com/angelmondragon/storefront-core/pkg/db/models"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
)

// Outcome is what a successful commit records on its attempt.
type Outcome struct {
	OrderID        string
	ReviewTotal    decimal.NullDecimal
	CommittedTotal decimal.NullDecimal
	ReviewSkipped  bool
	TotalMismatch  bool
}

// Repository persists checkout attempts keyed by idempotency key.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, attempt *models.CheckoutAttempt) error
	FindByKey(ctx context.Context, key string) (*models.CheckoutAttempt, error)
	Reclaim(ctx context.Context, id uuid.UUID, from enums.CheckoutAttemptStatus, staleBefore time.Time) (bool, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID) error
	MarkCommitted(ctx context.Context, id uuid.UUID, outcome Outcome) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository builds an attempts repository backed by the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	if conn == nil {
		return nil
	}
	return &repository{db: conn, now: func() time.Time { return time.Now().UTC() }}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, now: r.now}
}

// Create inserts a pending attempt. A concurrent insert under the same key
// surfaces as IDEMPOTENCY_KEY_REUSED.
func (r *repository) Create(ctx context.Context, attempt *models.CheckoutAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.Status == "" {
		attempt.Status = enums.CheckoutAttemptPending
	}
	now := r.now()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	if attempt.UpdatedAt.IsZero() {
		attempt.UpdatedAt = now
	}
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "checkout already in progress for this idempotency key")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create checkout attempt")
	}
	return nil
}

func (r *repository) FindByKey(ctx context.Context, key string) (*models.CheckoutAttempt, error) {
	var attempt models.CheckoutAttempt
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&attempt).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout attempt")
	}
	return &attempt, nil
}

// Reclaim moves an attempt from status `from` back to pending. When
// staleBefore is set the attempt must not have been touched since then.
// It reports whether this caller won the claim.
func (r *repository) Reclaim(ctx context.Context, id uuid.UUID, from enums.CheckoutAttemptStatus, staleBefore time.Time) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.CheckoutAttempt{}).Where("id = ? AND status = ?", id, from)
	if !staleBefore.IsZero() {
		q = q.Where("updated_at < ?", staleBefore)
	}
	res := q.Updates(map[string]any{
		"status":        enums.CheckoutAttemptPending,
		"error_message": nil,
		"updated_at":    r.now(),
	})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reclaim checkout attempt")
	}
	return res.RowsAffected == 1, nil
}

// MarkSubmitted records that the commit is about to be sent upstream. Only a
// pending attempt can move; from here on it is never reclaimed.
func (r *repository) MarkSubmitted(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.CheckoutAttempt{}).
		Where("id = ? AND status = ?", id, enums.CheckoutAttemptPending).
		Updates(map[string]any{
			"status":     enums.CheckoutAttemptSubmitted,
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "mark checkout attempt submitted")
	}
	if res.RowsAffected != 1 {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "checkout attempt is no longer pending")
	}
	return nil
}

// MarkCommitted stores the outcome. An empty OrderID means the backend
// accepted the order without a readable id.
func (r *repository) MarkCommitted(ctx context.Context, id uuid.UUID, outcome Outcome) error {
	var orderID *string
	if outcome.OrderID != "" {
		orderID = &outcome.OrderID
	}
	err := r.db.WithContext(ctx).Model(&models.CheckoutAttempt{}).Where("id = ?", id).Updates(map[string]any{
		"status":          enums.CheckoutAttemptCommitted,
		"order_id":        orderID,
		"review_total":    outcome.ReviewTotal,
		"committed_total": outcome.CommittedTotal,
		"review_skipped":  outcome.ReviewSkipped,
		"total_mismatch":  outcome.TotalMismatch,
		"error_message":   nil,
		"updated_at":      r.now(),
	}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark checkout attempt committed")
	}
	return nil
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	err := r.db.WithContext(ctx).Model(&models.CheckoutAttempt{}).Where("id = ?", id).Updates(map[string]any{
		"status":        enums.CheckoutAttemptFailed,
		"error_message": reason,
		"updated_at":    r.now(),
	}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark checkout attempt failed")
	}
	return nil
}
