package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
	"github.com/angelmondragon/storefront-core/pkg/pagination"
)

type backend interface {
	Do(ctx context.Context, session commerce.Session, req commerce.Request) (*commerce.Response, error)
}

// Page is one page of a customer's orders.
type Page struct {
	Orders []Order         `json:"orders"`
	Meta   pagination.Meta `json:"meta"`
}

// Service reads customer orders and requests customer transitions.
type Service interface {
	List(ctx context.Context, session commerce.Session, params pagination.Params) (*Page, error)
	Get(ctx context.Context, session commerce.Session, orderID string) (*Order, error)
	Track(ctx context.Context, session commerce.Session, orderID string) (*Tracking, error)
	Cancel(ctx context.Context, session commerce.Session, orderID, notes string) (*Order, error)
	RequestReturn(ctx context.Context, session commerce.Session, orderID, notes string) (*Order, error)
}

type service struct {
	backend backend
	metrics *metrics.Storefront
	logg    *logger.Logger
}

func NewService(backend backend, m *metrics.Storefront, logg *logger.Logger) (Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("commerce backend required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{backend: backend, metrics: m, logg: logg}, nil
}

func (s *service) List(ctx context.Context, session commerce.Session, params pagination.Params) (*Page, error) {
	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "orders.list",
		Method:    http.MethodGet,
		Path:      params.Path("orders"),
	})
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := resp.DecodeData(&raw); err != nil {
		return nil, err
	}
	page := &Page{Orders: []Order{}}
	meta, err := pagination.Decode(raw, &page.Orders)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "orders list is unreadable")
	}
	if page.Orders == nil {
		page.Orders = []Order{}
	}
	page.Meta = meta
	return page, nil
}

func (s *service) Get(ctx context.Context, session commerce.Session, orderID string) (*Order, error) {
	id, err := requireID(orderID)
	if err != nil {
		return nil, err
	}
	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "orders.get",
		Method:    http.MethodGet,
		Path:      ResourcePath("orders", id),
	})
	if err != nil {
		return nil, err
	}
	var order Order
	if err := resp.DecodeData(&order); err != nil {
		return nil, err
	}
	if order.ID.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &order, nil
}

func (s *service) Track(ctx context.Context, session commerce.Session, orderID string) (*Tracking, error) {
	id, err := requireID(orderID)
	if err != nil {
		return nil, err
	}
	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "orders.track",
		Method:    http.MethodGet,
		Path:      ResourcePath("orders", id, "track"),
	})
	if err != nil {
		return nil, err
	}
	tracking := &Tracking{}
	if err := resp.DecodeData(tracking); err != nil {
		return nil, err
	}
	if tracking.Milestones == nil {
		tracking.Milestones = []Milestone{}
	}
	return tracking, nil
}

func (s *service) Cancel(ctx context.Context, session commerce.Session, orderID, notes string) (*Order, error) {
	return s.transition(ctx, session, orderID, ActionCancel, notes, "cancel")
}

func (s *service) RequestReturn(ctx context.Context, session commerce.Session, orderID, notes string) (*Order, error) {
	return s.transition(ctx, session, orderID, ActionRequestReturn, notes, "request_return")
}

// transition loads the order, applies the local guard, asks the backend and
// then refetches so the caller sees the server's view.
func (s *service) transition(ctx context.Context, session commerce.Session, orderID string, action Action, notes, endpoint string) (*Order, error) {
	current, err := s.Get(ctx, session, orderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, current.ID.String())
	target := action.target()

	if err := guard(*current, action); err != nil {
		s.metrics.IncTransition(string(enums.ActorCustomer), string(target), "rejected")
		return nil, err
	}

	if _, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "orders." + endpoint,
		Method:    http.MethodPatch,
		Path:      ResourcePath("orders", current.ID.String(), endpoint),
		Body:      map[string]any{"notes": strings.TrimSpace(notes)},
	}); err != nil {
		s.metrics.IncTransition(string(enums.ActorCustomer), string(target), "failed")
		return nil, err
	}

	updated, err := s.Get(ctx, session, current.ID.String())
	if err != nil {
		return nil, err
	}
	if err := updated.Statuses.Extends(current.Statuses); err != nil {
		s.metrics.IncTransition(string(enums.ActorCustomer), string(target), "history_violation")
		s.logg.Error(ctx, "order status history was not append-only", err)
	}
	s.metrics.IncTransition(string(enums.ActorCustomer), string(target), "applied")
	s.logg.Info(s.logg.WithField(ctx, "status", updated.CurrentStatus().String()), "order transition applied")
	return updated, nil
}

func requireID(orderID string) (string, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return id, nil
}
