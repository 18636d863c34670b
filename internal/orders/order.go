package orders

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-core/internal/address"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/money"
	"github.com/angelmondragon/storefront-core/pkg/types"
)

// StatusEvent is one entry of an order's append-only status log.
type StatusEvent struct {
	Status    enums.OrderStatus `json:"status"`
	Notes     string            `json:"notes,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// Location is a delivery agent position fix.
type Location struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	RecordedAt string  `json:"recorded_at,omitempty"`
}

type Item struct {
	ID          types.ID       `json:"id"`
	ProductID   types.ID       `json:"product_id,omitempty"`
	VariantID   types.ID       `json:"variant_id,omitempty"`
	ProductName string         `json:"product_name,omitempty"`
	VariantName string         `json:"variant_name,omitempty"`
	Qty         money.Quantity `json:"qty"`
	Price       money.Amount   `json:"price"`
	Total       money.Amount   `json:"total"`
}

// Order mirrors the backend order resource. The backend owns it; the BFF
// only reads it and requests transitions.
type Order struct {
	ID              types.ID            `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	Subtotal        money.Amount        `json:"subtotal"`
	TaxAmount       money.Amount        `json:"tax_amount"`
	ShippingAmount  money.Amount        `json:"shipping_amount"`
	DiscountAmount  money.Amount        `json:"discount_amount"`
	TotalAmount     money.Amount        `json:"total_amount"`
	ShippingAddress *address.Address    `json:"shipping_address,omitempty"`
	BillingAddress  *address.Address    `json:"billing_address,omitempty"`
	Items           []Item              `json:"order_items"`
	Statuses        History             `json:"order_statuses"`
	Locations       []Location          `json:"order_locations,omitempty"`
	CanBeCancelled  *bool               `json:"can_be_cancelled,omitempty"`
	CanBeReturned   *bool               `json:"can_be_returned,omitempty"`
	CreatedAt       string              `json:"created_at,omitempty"`
}

// CurrentStatus is the most recent status event, falling back to Status
// when the log is empty.
func (o Order) CurrentStatus() enums.OrderStatus {
	if last, ok := o.Statuses.Sorted().Last(); ok && last.Status != "" {
		return last.Status
	}
	return o.Status
}

// CurrentPosition is the most recently recorded location.
func (o Order) CurrentPosition() (Location, bool) {
	if len(o.Locations) == 0 {
		return Location{}, false
	}
	best := 0
	for i := 1; i < len(o.Locations); i++ {
		if !before(o.Locations[i].RecordedAt, o.Locations[best].RecordedAt) {
			best = i
		}
	}
	return o.Locations[best], true
}

// Milestone is a named stage on the customer tracking view.
type Milestone struct {
	Title     string `json:"title"`
	Status    string `json:"status,omitempty"`
	Date      string `json:"date,omitempty"`
	Completed bool   `json:"completed"`
}

// Tracking is the order tracking view. Shiprocket carries the courier
// payload untouched when the backend has one.
type Tracking struct {
	Milestones []Milestone     `json:"milestones"`
	Shiprocket json.RawMessage `json:"shiprocket,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// before reports a < b when both parse; unparseable stamps keep log order.
func before(a, b string) bool {
	ta, okA := parseTimestamp(a)
	tb, okB := parseTimestamp(b)
	if !okA || !okB {
		return false
	}
	return ta.Before(tb)
}

func sortEvents(events []StatusEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return before(events[i].CreatedAt, events[j].CreatedAt)
	})
}

// ResourcePath builds an upstream order path with the id escaped as a single
// segment, e.g. ResourcePath("orders", "42", "track") is "orders/42/track".
func ResourcePath(prefix, orderID string, action ...string) string {
	parts := append([]string{strings.TrimRight(prefix, "/"), url.PathEscape(strings.TrimSpace(orderID))}, action...)
	return strings.Join(parts, "/")
}
