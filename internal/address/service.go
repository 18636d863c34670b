package address

import (
	"context"
	"fmt"
	"net/http"

	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/logger"
)

type backend interface {
	Do(ctx context.Context, session commerce.Session, req commerce.Request) (*commerce.Response, error)
}

// Service reads the customer's address book.
type Service interface {
	// List fails with the upstream error.
	List(ctx context.Context, session commerce.Session) ([]Address, error)
	// ListOrEmpty fails open: errors are logged and an empty list returned.
	ListOrEmpty(ctx context.Context, session commerce.Session) []Address
}

type service struct {
	backend backend
	logg    *logger.Logger
}

func NewService(backend backend, logg *logger.Logger) (Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("commerce backend required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{backend: backend, logg: logg}, nil
}

func (s *service) List(ctx context.Context, session commerce.Session) ([]Address, error) {
	resp, err := s.backend.Do(ctx, session, commerce.Request{
		Operation: "addresses.list",
		Method:    http.MethodGet,
		Path:      "addresses",
	})
	if err != nil {
		return nil, err
	}
	list := []Address{}
	if err := resp.DecodeData(&list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *service) ListOrEmpty(ctx context.Context, session commerce.Session) []Address {
	list, err := s.List(ctx, session)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "address list unavailable, continuing without addresses")
		return []Address{}
	}
	return list
}
