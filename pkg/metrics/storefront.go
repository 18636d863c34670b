package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Storefront records checkout, coupon, order transition and upstream call metrics.
// A nil *Storefront is a valid no-op recorder.
type Storefront struct {
	checkout    *prometheus.CounterVec
	mismatch    prometheus.Counter
	coupons     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	upstream    *prometheus.HistogramVec
}

// NewStorefront registers the storefront metrics on the provided registerer.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	checkout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_attempts_total",
		Help:      "Checkout commits by outcome.",
	}, []string{"outcome"})
	mismatch := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_total_mismatch_total",
		Help:      "Commits whose charged total differed from the reviewed total.",
	})
	coupons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coupon_apply_total",
		Help:      "Coupon apply calls by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order transition requests by actor, target status and outcome.",
	}, []string{"actor", "status", "outcome"})
	upstream := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of commerce backend calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "code"})
	reg.MustRegister(checkout, mismatch, coupons, transitions, upstream)
	return &Storefront{
		checkout:    checkout,
		mismatch:    mismatch,
		coupons:     coupons,
		transitions: transitions,
		upstream:    upstream,
	}
}

// IncCheckout counts a commit outcome such as committed, replayed or failed.
func (s *Storefront) IncCheckout(outcome string) {
	if s == nil || s.checkout == nil {
		return
	}
	s.checkout.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (s *Storefront) IncTotalMismatch() {
	if s == nil || s.mismatch == nil {
		return
	}
	s.mismatch.Inc()
}

func (s *Storefront) IncCouponApply(outcome string) {
	if s == nil || s.coupons == nil {
		return
	}
	s.coupons.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (s *Storefront) IncTransition(actor, status, outcome string) {
	if s == nil || s.transitions == nil {
		return
	}
	s.transitions.WithLabelValues(normalizeLabel(actor), normalizeLabel(status), normalizeLabel(outcome)).Inc()
}

// ObserveUpstream records one backend call; statusCode 0 means the call never got a response.
func (s *Storefront) ObserveUpstream(operation string, statusCode int, duration time.Duration) {
	if s == nil || s.upstream == nil {
		return
	}
	code := "network_error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	s.upstream.WithLabelValues(normalizeLabel(operation), code).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
