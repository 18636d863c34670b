package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/storefront-core/internal/pricing"
	pkgcheckout "github.com/angelmondragon/storefront-core/pkg/checkout"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/db/models"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
	"github.com/angelmondragon/storefront-core/pkg/money"
	"github.com/angelmondragon/storefront-core/pkg/types"
)

const (
	maxIdempotencyKeyLen = 128
	ledgerTimeout        = 5 * time.Second
)

type backend interface {
	Do(ctx context.Context, session commerce.Session, req commerce.Request) (*commerce.Response, error)
}

type couponSlot interface {
	Current(ctx context.Context, session commerce.Session) (*pricing.Coupon, error)
	Remove(ctx context.Context, session commerce.Session) error
}

// Options tunes the orchestrator.
type Options struct {
	RequireReview bool
	// PendingTimeout releases a claimed attempt that never reached the backend.
	PendingTimeout time.Duration
	CommitTimeout  time.Duration
}

// Review is the outcome of the review phase. Quote is nil when the backend
// answered without data.
type Review struct {
	Quote   *pricing.Quote `json:"quote"`
	payload map[string]any
}

// Result is what a commit returns for navigation and display.
type Result struct {
	OrderID        types.ID        `json:"order_id"`
	OrderNumber    string          `json:"order_number,omitempty"`
	ReviewTotal    *money.Amount   `json:"review_total,omitempty"`
	CommittedTotal *money.Amount   `json:"committed_total,omitempty"`
	ReviewSkipped  bool            `json:"review_skipped"`
	TotalMismatch  bool            `json:"total_mismatch"`
	Replayed       bool            `json:"replayed"`
	Order          json.RawMessage `json:"order,omitempty"`
}

// Service runs the two-phase review then commit protocol.
type Service interface {
	Review(ctx context.Context, session commerce.Session, req Request) (*Review, error)
	Commit(ctx context.Context, session commerce.Session, idempotencyKey string, req Request) (*Result, error)
	VerifyPayment(ctx context.Context, session commerce.Session, orderID string, payload map[string]any) (json.RawMessage, error)
}

type service struct {
	backend  backend
	attempts Repository
	coupons  couponSlot
	metrics  *metrics.Storefront
	logg     *logger.Logger
	opts     Options
	flight   singleflight.Group
	now      func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(backend backend, attempts Repository, coupons couponSlot, m *metrics.Storefront, logg *logger.Logger, opts Options) (Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("commerce backend required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("checkout attempt repository required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon slot required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = 2 * time.Minute
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = 45 * time.Second
	}
	return &service{
		backend:  backend,
		attempts: attempts,
		coupons:  coupons,
		metrics:  m,
		logg:     logg,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Review(ctx context.Context, session commerce.Session, req Request) (*Review, error) {
	req = req.normalized()
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return s.review(ctx, session, s.withAppliedCoupon(ctx, session, req))
}

func (s *service) review(ctx context.Context, session commerce.Session, req Request) (*Review, error) {
	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "orders.review",
		Method:    http.MethodPost,
		Path:      "orders/order_review",
		Body:      req.payload(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.HasData() {
		return &Review{}, nil
	}

	var raw json.RawMessage
	if err := resp.DecodeData(&raw); err != nil {
		return nil, err
	}
	quote, err := pricing.ParseQuote(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order review returned an unreadable quote")
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order review payload is not an object")
	}
	return &Review{Quote: &quote, payload: payload}, nil
}

// Commit places the order. Calls sharing an idempotency key are collapsed
// in-process and deduplicated durably through the attempts ledger.
func (s *service) Commit(ctx context.Context, session commerce.Session, idempotencyKey string, req Request) (*Result, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header is required")
	}
	if len(key) > maxIdempotencyKeyLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key is too long")
	}
	req = req.normalized()
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	hash, err := pkgcheckout.Fingerprint(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash checkout request")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"idempotency_key": key, "user_id": session.Key()})
	// The flight runs to completion even when the caller goes away, so the
	// ledger always records what happened upstream.
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(session.Key()+":"+key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(detached, s.opts.CommitTimeout)
		defer cancel()
		return s.commit(flightCtx, session, key, hash, req)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := *res.Val.(*Result)
		return &result, nil
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "checkout request cancelled, retry with the same Idempotency-Key")
	}
}

func (s *service) commit(ctx context.Context, session commerce.Session, key, hash string, req Request) (*Result, error) {
	attempt, replay, err := s.claim(ctx, session, key, hash)
	if err != nil {
		s.metrics.IncCheckout(outcomeFor(err))
		return nil, err
	}
	if replay != nil {
		s.metrics.IncCheckout("replayed")
		return replay, nil
	}

	req = s.withAppliedCoupon(ctx, session, req)
	result, body, err := s.prepare(ctx, session, req)
	if err != nil {
		s.markFailed(ctx, attempt, err)
		s.metrics.IncCheckout("failed")
		return nil, err
	}

	ledgerCtx, cancel := s.ledgerContext(ctx)
	err = s.attempts.MarkSubmitted(ledgerCtx, attempt.ID)
	cancel()
	if err != nil {
		s.markFailed(ctx, attempt, err)
		s.metrics.IncCheckout("failed")
		return nil, err
	}

	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "orders.checkout",
		Method:    http.MethodPost,
		Path:      "orders/checkout",
		Body:      body,
		Header:    http.Header{commerce.IdempotencyHeader: []string{key}},
	})
	if err != nil {
		if outcomeUnknown(err) {
			s.logg.Error(ctx, "checkout outcome unknown, attempt stays submitted", err)
			s.metrics.IncCheckout("unknown")
			return nil, err
		}
		s.markFailed(ctx, attempt, err)
		s.metrics.IncCheckout("failed")
		return nil, err
	}

	s.readPlaced(ctx, resp, result)
	outcome := Outcome{
		OrderID:        result.OrderID.String(),
		ReviewTotal:    nullDecimal(result.ReviewTotal),
		CommittedTotal: nullDecimal(result.CommittedTotal),
		ReviewSkipped:  result.ReviewSkipped,
		TotalMismatch:  result.TotalMismatch,
	}
	ledgerCtx, cancel = s.ledgerContext(ctx)
	err = s.attempts.MarkCommitted(ledgerCtx, attempt.ID, outcome)
	cancel()
	if err != nil {
		// the attempt stays submitted, so the key cannot place a second order
		s.logg.Error(s.logg.WithOrderID(ctx, outcome.OrderID), "failed to record committed checkout attempt", err)
	}

	if err := s.coupons.Remove(ctx, session); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to clear coupon slot after checkout")
	}
	s.metrics.IncCheckout("committed")
	s.logg.Info(s.logg.WithOrderID(ctx, outcome.OrderID), "checkout committed")
	return result, nil
}

// claim resolves the attempt for key. It returns either an attempt this
// caller now owns or a replayable result.
func (s *service) claim(ctx context.Context, session commerce.Session, key, hash string) (*models.CheckoutAttempt, *Result, error) {
	existing, err := s.attempts.FindByKey(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if existing == nil {
		attempt := &models.CheckoutAttempt{
			ID:             uuid.New(),
			IdempotencyKey: key,
			UserID:         session.Key(),
			RequestHash:    hash,
			Status:         enums.CheckoutAttemptPending,
		}
		if err := s.attempts.Create(ctx, attempt); err != nil {
			return nil, nil, err
		}
		return attempt, nil, nil
	}

	if existing.UserID != session.Key() || existing.RequestHash != hash {
		return nil, nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key was used with a different request")
	}

	switch existing.Status {
	case enums.CheckoutAttemptCommitted:
		return nil, replayOf(existing), nil
	case enums.CheckoutAttemptSubmitted:
		return nil, nil, pkgerrors.New(pkgerrors.CodeIdempotency, "the outcome of the checkout sent with this idempotency key is unknown; check your orders before retrying with a new key")
	case enums.CheckoutAttemptFailed:
		won, err := s.attempts.Reclaim(ctx, existing.ID, enums.CheckoutAttemptFailed, time.Time{})
		if err != nil {
			return nil, nil, err
		}
		if !won {
			return nil, nil, pkgerrors.New(pkgerrors.CodeIdempotency, "checkout already in progress for this idempotency key")
		}
		return existing, nil, nil
	default:
		// a pending attempt never reached the backend, so a stale one is safe to take over
		staleBefore := s.now().Add(-s.opts.PendingTimeout)
		if existing.UpdatedAt.After(staleBefore) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeIdempotency, "checkout already in progress for this idempotency key")
		}
		won, err := s.attempts.Reclaim(ctx, existing.ID, enums.CheckoutAttemptPending, staleBefore)
		if err != nil {
			return nil, nil, err
		}
		if !won {
			return nil, nil, pkgerrors.New(pkgerrors.CodeIdempotency, "checkout already in progress for this idempotency key")
		}
		s.logg.Warn(ctx, "reclaimed stale pending checkout attempt")
		return existing, nil, nil
	}
}

// prepare runs the review and builds the checkout body. Nothing has been
// sent to orders/checkout yet when it returns.
func (s *service) prepare(ctx context.Context, session commerce.Session, req Request) (*Result, map[string]any, error) {
	review, err := s.review(ctx, session, req)
	if err != nil {
		return nil, nil, err
	}

	result := &Result{}
	body := req.payload()
	if review.Quote == nil {
		if s.opts.RequireReview {
			return nil, nil, pkgerrors.New(pkgerrors.CodeDependency, "order review returned no data")
		}
		result.ReviewSkipped = true
		s.logg.Warn(ctx, "order review returned no data, committing the raw request")
	} else {
		body = merge(review.payload, body)
		total := review.Quote.Total
		result.ReviewTotal = &total
	}
	return result, body, nil
}

// readPlaced fills result from an accepted checkout reply. A reply without a
// readable order leaves OrderID empty; the order still exists upstream.
func (s *service) readPlaced(ctx context.Context, resp *commerce.Response, result *Result) {
	var raw json.RawMessage
	if err := resp.DecodeData(&raw); err != nil {
		s.logg.Error(ctx, "checkout accepted with an unreadable body", err)
		return
	}
	var placed struct {
		ID          types.ID      `json:"id"`
		OrderID     types.ID      `json:"order_id"`
		OrderNumber string        `json:"order_number"`
		TotalAmount *money.Amount `json:"total_amount"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &placed); err != nil {
			s.logg.Error(ctx, "checkout accepted with a body that is not an order", err)
			return
		}
	}
	result.OrderID = placed.ID
	if result.OrderID.IsZero() {
		result.OrderID = placed.OrderID
	}
	if result.OrderID.IsZero() {
		s.logg.Error(ctx, "checkout accepted without an order id", nil)
	}
	result.OrderNumber = placed.OrderNumber
	result.Order = raw
	if placed.TotalAmount != nil {
		total := placed.TotalAmount.Round()
		result.CommittedTotal = &total
	}

	if result.ReviewTotal != nil && result.CommittedTotal != nil && !result.ReviewTotal.Equal(*result.CommittedTotal) {
		result.TotalMismatch = true
		s.metrics.IncTotalMismatch()
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"order_id":        result.OrderID.String(),
			"review_total":    result.ReviewTotal.String(),
			"committed_total": result.CommittedTotal.String(),
		}), "committed total differs from reviewed total", nil)
	}
}

// withAppliedCoupon fills a missing offer code from the coupon slot.
func (s *service) withAppliedCoupon(ctx context.Context, session commerce.Session, req Request) Request {
	if req.OfferCode != "" {
		return req
	}
	coupon, err := s.coupons.Current(ctx, session)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "could not read applied coupon for checkout")
		return req
	}
	if coupon != nil {
		req.OfferCode = strings.ToUpper(strings.TrimSpace(coupon.Code))
	}
	return req
}

func (s *service) markFailed(ctx context.Context, attempt *models.CheckoutAttempt, cause error) {
	ledgerCtx, cancel := s.ledgerContext(ctx)
	defer cancel()
	if err := s.attempts.MarkFailed(ledgerCtx, attempt.ID, cause.Error()); err != nil {
		s.logg.Error(ctx, "failed to mark checkout attempt failed", err)
	}
}

func (s *service) ledgerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
}

func (s *service) VerifyPayment(ctx context.Context, session commerce.Session, orderID string, payload map[string]any) (json.RawMessage, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "orders.verify_payment",
		Method:    http.MethodPost,
		Path:      "orders/" + url.PathEscape(orderID) + "/verify_payment",
		Body:      payload,
	})
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := resp.DecodeData(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func replayOf(attempt *models.CheckoutAttempt) *Result {
	result := &Result{
		ReviewSkipped: attempt.ReviewSkipped,
		TotalMismatch: attempt.TotalMismatch,
		Replayed:      true,
	}
	if attempt.OrderID != nil {
		result.OrderID = types.ID(*attempt.OrderID)
	}
	if attempt.ReviewTotal.Valid {
		v := money.FromDecimal(attempt.ReviewTotal.Decimal).Round()
		result.ReviewTotal = &v
	}
	if attempt.CommittedTotal.Valid {
		v := money.FromDecimal(attempt.CommittedTotal.Decimal).Round()
		result.CommittedTotal = &v
	}
	return result
}

func nullDecimal(a *money.Amount) decimal.NullDecimal {
	if a == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: a.Decimal(), Valid: true}
}

// outcomeUnknown reports whether a failed checkout call may still have placed
// the order. Only a 4xx verdict or a request that never left is known to have
// placed nothing.
func outcomeUnknown(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	switch typed.Code() {
	case pkgerrors.CodeBackendRejected:
		return typed.HTTPStatus() >= http.StatusInternalServerError
	case pkgerrors.CodeUnauthorized, pkgerrors.CodeValidation, pkgerrors.CodeInternal:
		return false
	default:
		return true
	}
}

func outcomeFor(err error) string {
	if pkgerrors.IsCode(err, pkgerrors.CodeIdempotency) {
		return "conflict"
	}
	return "error"
}
