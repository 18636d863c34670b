package cart

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-core/internal/address"
	"github.com/angelmondragon/storefront-core/internal/pricing"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/money"
)

type backend interface {
	Do(ctx context.Context, session commerce.Session, req commerce.Request) (*commerce.Response, error)
}

type couponSlot interface {
	Current(ctx context.Context, session commerce.Session) (*pricing.Coupon, error)
	Remove(ctx context.Context, session commerce.Session) error
}

type addressBook interface {
	ListOrEmpty(ctx context.Context, session commerce.Session) []address.Address
}

// Cart is the customer's cart with variants resolved.
type Cart struct {
	Items []pricing.CartItem `json:"items"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Summary is everything the cart page prices from.
type Summary struct {
	Cart           *Cart             `json:"cart"`
	Estimate       pricing.Estimate  `json:"estimate"`
	Addresses      []address.Address `json:"addresses"`
	DefaultAddress *address.Address  `json:"default_address,omitempty"`
}

// Service reads and mutates the backend cart. Every mutation refetches the
// full cart; when that refetch comes back empty the applied coupon is cleared.
type Service interface {
	Fetch(ctx context.Context, session commerce.Session) (*Cart, error)
	UpdateQty(ctx context.Context, session commerce.Session, itemID string, qty int) (*Cart, error)
	Remove(ctx context.Context, session commerce.Session, itemID string) (*Cart, error)
	Summary(ctx context.Context, session commerce.Session) (*Summary, error)
}

type service struct {
	backend   backend
	engine    *pricing.Engine
	coupons   couponSlot
	addresses addressBook
	logg      *logger.Logger
}

func NewService(backend backend, engine *pricing.Engine, coupons couponSlot, addresses addressBook, logg *logger.Logger) (Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("commerce backend required")
	}
	if engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon slot required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address book required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{backend: backend, engine: engine, coupons: coupons, addresses: addresses, logg: logg}, nil
}

type cartPayload struct {
	CartItems []pricing.CartLine `json:"cart_items"`
}

func (s *service) Fetch(ctx context.Context, session commerce.Session) (*Cart, error) {
	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "cart.fetch",
		Method:    http.MethodGet,
		Path:      "cart",
	})
	if err != nil {
		return nil, err
	}
	var payload cartPayload
	if err := resp.DecodeData(&payload); err != nil {
		return nil, err
	}
	items, err := pricing.ResolveLines(payload.CartItems, s.engine.Rules().VariantPolicy)
	if err != nil {
		return nil, err
	}
	return &Cart{Items: items}, nil
}

func (s *service) UpdateQty(ctx context.Context, session commerce.Session, itemID string, qty int) (*Cart, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}
	quantity, err := money.NewQuantity(qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "qty must be at least 1")
	}

	if _, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "cart.update_item",
		Method:    http.MethodPatch,
		Path:      "cart/update_item",
		Body:      map[string]any{"cart_item_id": itemID, "qty": int(quantity)},
	}); err != nil {
		return nil, err
	}
	return s.refetch(ctx, session)
}

func (s *service) Remove(ctx context.Context, session commerce.Session, itemID string) (*Cart, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}

	if _, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "cart.remove_item",
		Method:    http.MethodDelete,
		Path:      "cart/remove_item",
		Body:      map[string]any{"cart_item_id": itemID},
	}); err != nil {
		return nil, err
	}
	return s.refetch(ctx, session)
}

// refetch reloads the cart after a mutation. A mutation targets an existing
// item, so an empty result is the non-empty to empty transition.
func (s *service) refetch(ctx context.Context, session commerce.Session) (*Cart, error) {
	cart, err := s.Fetch(ctx, session)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		if err := s.coupons.Remove(ctx, session); err != nil {
			return nil, err
		}
		s.logg.Info(ctx, "cart emptied, applied coupon cleared")
	}
	return cart, nil
}

func (s *service) Summary(ctx context.Context, session commerce.Session) (*Summary, error) {
	var (
		cart      *Cart
		coupon    *pricing.Coupon
		addresses []address.Address
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cart, err = s.Fetch(gctx, session)
		return err
	})
	g.Go(func() error {
		var err error
		coupon, err = s.coupons.Current(gctx, session)
		return err
	})
	g.Go(func() error {
		addresses = s.addresses.ListOrEmpty(gctx, session)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cart.IsEmpty() && coupon != nil {
		if err := s.coupons.Remove(ctx, session); err != nil {
			return nil, err
		}
		coupon = nil
	}

	return &Summary{
		Cart:           cart,
		Estimate:       s.engine.Estimate(cart.Items, coupon),
		Addresses:      addresses,
		DefaultAddress: address.Default(addresses),
	}, nil
}
