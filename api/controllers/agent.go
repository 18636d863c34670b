package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/storefront-core/api/responses"
	"github.com/angelmondragon/storefront-core/api/validators"
	"github.com/angelmondragon/storefront-core/internal/delivery"
	"github.com/angelmondragon/storefront-core/internal/orders"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/pagination"
)

const (
	maxProofBytes = 10 << 20
	proofFormKey  = "proof"
)

type deliveryService interface {
	ListOrders(ctx context.Context, session commerce.Session, params pagination.Params) (*orders.Page, error)
	Get(ctx context.Context, session commerce.Session, orderID string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, session commerce.Session, orderID string, status enums.OrderStatus, notes string) (*orders.Order, error)
	AddLocation(ctx context.Context, session commerce.Session, orderID string, lat, lng float64) (*orders.Order, error)
	UploadProof(ctx context.Context, session commerce.Session, orderID string, proof delivery.Proof) (*orders.Order, error)
}

type agentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=out_for_delivery delivered"`
	Notes  string `json:"notes" validate:"max=500"`
}

type agentLocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

func AgentOrderList(svc deliveryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListOrders(r.Context(), session, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AgentOrderDetail(svc deliveryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, orderID, err := orderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		o, err := svc.Get(r.Context(), session, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(o))
	}
}

func AgentUpdateStatus(svc deliveryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, orderID, err := orderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body agentStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		o, err := svc.UpdateStatus(r.Context(), session, orderID, status, validators.SanitizeString(body.Notes, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(o))
	}
}

func AgentAddLocation(svc deliveryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, orderID, err := orderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body agentLocationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		o, err := svc.AddLocation(r.Context(), session, orderID, *body.Latitude, *body.Longitude)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(o))
	}
}

// AgentUploadProof forwards a multipart "proof" file to the agent API.
func AgentUploadProof(svc deliveryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, orderID, err := orderRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxProofBytes+1<<20)
		if err := r.ParseMultipartForm(maxProofBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "proof file too large"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart form required"))
			return
		}
		file, header, err := r.FormFile(proofFormKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "proof file is required"))
			return
		}
		defer file.Close()

		content, err := io.ReadAll(io.LimitReader(file, maxProofBytes+1))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read proof file"))
			return
		}
		if len(content) > maxProofBytes {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "proof file too large"))
			return
		}

		o, err := svc.UploadProof(r.Context(), session, orderID, delivery.Proof{FileName: header.Filename, Content: content})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(o))
	}
}
