package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-core/api/responses"
	"github.com/angelmondragon/storefront-core/internal/address"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/logger"
)

type addressLister interface {
	List(ctx context.Context, session commerce.Session) ([]address.Address, error)
}

type addressListResponse struct {
	Addresses []address.Address `json:"addresses"`
	Default   *address.Address  `json:"default,omitempty"`
}

func AddressList(svc addressLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), session)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if list == nil {
			list = []address.Address{}
		}
		responses.WriteSuccess(w, addressListResponse{Addresses: list, Default: address.Default(list)})
	}
}
