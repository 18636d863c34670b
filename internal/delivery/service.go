package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/storefront-core/internal/orders"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
	"github.com/angelmondragon/storefront-core/pkg/pagination"
)

const proofField = "proof"

type backend interface {
	Do(ctx context.Context, session commerce.Session, req commerce.Request) (*commerce.Response, error)
}

// Proof is a delivery proof attachment.
type Proof struct {
	FileName string
	Content  []byte
}

// Service is the delivery agent's view of assigned orders. It talks to the
// agent API with the agent's own credential.
type Service interface {
	ListOrders(ctx context.Context, session commerce.Session, params pagination.Params) (*orders.Page, error)
	Get(ctx context.Context, session commerce.Session, orderID string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, session commerce.Session, orderID string, status enums.OrderStatus, notes string) (*orders.Order, error)
	AddLocation(ctx context.Context, session commerce.Session, orderID string, lat, lng float64) (*orders.Order, error)
	UploadProof(ctx context.Context, session commerce.Session, orderID string, proof Proof) (*orders.Order, error)
}

type service struct {
	backend backend
	metrics *metrics.Storefront
	logg    *logger.Logger
}

func NewService(backend backend, m *metrics.Storefront, logg *logger.Logger) (Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("agent backend required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{backend: backend, metrics: m, logg: logg}, nil
}

func (s *service) ListOrders(ctx context.Context, session commerce.Session, params pagination.Params) (*orders.Page, error) {
	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "agent.orders.list",
		Method:    http.MethodGet,
		Path:      params.Path("/orders"),
	})
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := resp.DecodeData(&raw); err != nil {
		return nil, err
	}
	page := &orders.Page{Orders: []orders.Order{}}
	meta, err := pagination.Decode(raw, &page.Orders)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "agent orders list is unreadable")
	}
	if page.Orders == nil {
		page.Orders = []orders.Order{}
	}
	page.Meta = meta
	return page, nil
}

func (s *service) Get(ctx context.Context, session commerce.Session, orderID string) (*orders.Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "agent.orders.get",
		Method:    http.MethodGet,
		Path:      orders.ResourcePath("/orders", id),
	})
	if err != nil {
		return nil, err
	}
	var order orders.Order
	if err := resp.DecodeData(&order); err != nil {
		return nil, err
	}
	if order.ID.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &order, nil
}

func (s *service) UpdateStatus(ctx context.Context, session commerce.Session, orderID string, status enums.OrderStatus, notes string) (*orders.Order, error) {
	if status != enums.OrderStatusOutForDelivery && status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be out_for_delivery or delivered")
	}
	return s.act(ctx, session, orderID, string(status), func(o *orders.Order) error {
		if orders.CanTransition(o.CurrentStatus(), status, enums.ActorAgent) {
			return nil
		}
		return illegal(o, fmt.Sprintf("cannot move order from %s to %s", o.CurrentStatus().Label(), status.Label()))
	}, commerce.Request{
		Operation: "agent.orders.update_status",
		Method:    http.MethodPost,
		Path:      orders.ResourcePath("/orders", orderID, "update_status"),
		Body:      map[string]any{"status": status, "notes": strings.TrimSpace(notes)},
	})
}

func (s *service) AddLocation(ctx context.Context, session commerce.Session, orderID string, lat, lng float64) (*orders.Order, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	return s.act(ctx, session, orderID, "location", outForDelivery("record a location"), commerce.Request{
		Operation: "agent.orders.add_location",
		Method:    http.MethodPost,
		Path:      orders.ResourcePath("/orders", orderID, "add_location"),
		Body:      map[string]any{"latitude": lat, "longitude": lng},
	})
}

func (s *service) UploadProof(ctx context.Context, session commerce.Session, orderID string, proof Proof) (*orders.Order, error) {
	if len(proof.Content) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proof file is required")
	}
	name := filepath.Base(strings.TrimSpace(proof.FileName))
	if name == "." || name == "/" || name == "" {
		name = "proof"
	}
	return s.act(ctx, session, orderID, "proof", outForDelivery("upload proof"), commerce.Request{
		Operation: "agent.orders.upload_proof",
		Method:    http.MethodPost,
		Path:      orders.ResourcePath("/orders", orderID, "upload_proof"),
		File:      &commerce.File{FieldName: proofField, FileName: name, Content: proof.Content},
	})
}

// act loads the order for the guard, posts, then re-fetches the full order.
// Nothing is mutated locally.
func (s *service) act(ctx context.Context, session commerce.Session, orderID, label string, check func(*orders.Order) error, req commerce.Request) (*orders.Order, error) {
	current, err := s.Get(ctx, session, orderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, current.ID.String())

	if err := check(current); err != nil {
		s.metrics.IncTransition(string(enums.ActorAgent), label, "rejected")
		return nil, err
	}
	if _, err := s.backend.Do(ctx, session, req); err != nil {
		s.metrics.IncTransition(string(enums.ActorAgent), label, "failed")
		return nil, err
	}

	updated, err := s.Get(ctx, session, current.ID.String())
	if err != nil {
		return nil, err
	}
	if err := updated.Statuses.Extends(current.Statuses); err != nil {
		s.logg.Error(ctx, "order status history was not append-only", err)
	}
	s.metrics.IncTransition(string(enums.ActorAgent), label, "applied")
	s.logg.Info(s.logg.WithField(ctx, "action", label), "agent action applied")
	return updated, nil
}

func outForDelivery(what string) func(*orders.Order) error {
	return func(o *orders.Order) error {
		if o.CurrentStatus() == enums.OrderStatusOutForDelivery {
			return nil
		}
		return illegal(o, fmt.Sprintf("can only %s while the order is out for delivery", what))
	}
}

func illegal(o *orders.Order, msg string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(map[string]any{
		"order_id": o.ID.String(),
		"status":   o.CurrentStatus(),
	})
}

func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return pkgerrors.New(pkgerrors.CodeValidation, "coordinates must be numbers")
	}
	if lat < -90 || lat > 90 {
		return pkgerrors.New(pkgerrors.CodeValidation, "latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return pkgerrors.New(pkgerrors.CodeValidation, "longitude must be between -180 and 180")
	}
	return nil
}
