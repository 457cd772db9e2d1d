package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/api/middleware"
	"github.com/anucarts/marketplace-backend/api/responses"
	"github.com/anucarts/marketplace-backend/api/validators"
	"github.com/anucarts/marketplace-backend/internal/fanout"
	"github.com/anucarts/marketplace-backend/internal/media"
	internalorders "github.com/anucarts/marketplace-backend/internal/orders"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

var errNoOrders = pkgerrors.New(pkgerrors.CodeNotFound, "no orders found")

// endpoint serves one request for the authenticated principal and returns
// the success status and payload.
type endpoint[S any] func(r *http.Request, svc S, principalID uuid.UUID) (int, any, error)

func serve[S any](svc S, name string, logg *logger.Logger, ep endpoint[S]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if any(svc) == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
			return
		}
		principalID, err := middleware.RequirePrincipal(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, body, err := ep(r, svc, principalID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, body)
	}
}

// PlaceOrder records a checkout. A FANOUT_INCOMPLETE failure still means the
// order was stored; its id travels in the error details.
func PlaceOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(svc, "order", logg, func(r *http.Request, svc internalorders.Service, buyerID uuid.UUID) (int, any, error) {
		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return 0, nil, err
		}
		order, err := svc.PlaceOrder(r.Context(), payload.toInput(buyerID))
		return http.StatusCreated, order, err
	})
}

// List returns the buyer's orders, newest first. An empty history is a 404,
// which the mobile client renders as its empty state.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(svc, "order", logg, func(r *http.Request, svc internalorders.Service, buyerID uuid.UUID) (int, any, error) {
		orders, err := svc.ListOrdersForBuyer(r.Context(), buyerID)
		return orderList(orders, err)
	})
}

// Detail returns one of the buyer's orders. Orders of other buyers read as missing.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(svc, "order", logg, func(r *http.Request, svc internalorders.Service, buyerID uuid.UUID) (int, any, error) {
		orderID, err := orderIDParam(r)
		if err != nil {
			return 0, nil, err
		}
		order, err := svc.GetOrder(r.Context(), buyerID, orderID)
		return http.StatusOK, order, err
	})
}

// SellerOrders returns every order holding at least one of the seller's products.
func SellerOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(svc, "order", logg, func(r *http.Request, svc internalorders.Service, sellerID uuid.UUID) (int, any, error) {
		orders, err := svc.ListOrdersForSeller(r.Context(), sellerID)
		return orderList(orders, err)
	})
}

// SellerEntries returns the seller's fan-out worklist.
func SellerEntries(svc fanout.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(svc, "fanout", logg, func(r *http.Request, svc fanout.Service, sellerID uuid.UUID) (int, any, error) {
		entries, err := svc.ListForSeller(r.Context(), sellerID)
		return http.StatusOK, map[string]any{"entries": entries}, err
	})
}

// UpdateStatus applies a seller's status change to the order and every fan-out entry.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(svc, "order", logg, func(r *http.Request, svc internalorders.Service, sellerID uuid.UUID) (int, any, error) {
		orderID, err := orderIDParam(r)
		if err != nil {
			return 0, nil, err
		}
		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return 0, nil, err
		}
		order, err := svc.UpdateOrderStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID:  orderID,
			SellerID: sellerID,
			Status:   payload.OrderStatus,
		})
		return http.StatusOK, order, err
	})
}

// UploadImage stores a line item image and returns its public URL.
func UploadImage(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(svc, "media", logg, func(r *http.Request, svc media.Service, buyerID uuid.UUID) (int, any, error) {
		if err := validators.ParseMultipart(r, svc.MaxBytes()); err != nil {
			return 0, nil, err
		}
		data, err := validators.FormFile(r, "image", svc.MaxBytes())
		if err != nil {
			return 0, nil, err
		}
		if len(data) == 0 {
			return 0, nil, pkgerrors.New(pkgerrors.CodeValidation, "image is required")
		}
		url, err := svc.StoreImage(r.Context(), media.ScopeOrderLine, buyerID, data)
		return http.StatusCreated, map[string]string{"url": url}, err
	})
}

func orderList[T any](orders []T, err error) (int, any, error) {
	switch {
	case err != nil:
		return 0, nil, err
	case len(orders) == 0:
		return 0, nil, errNoOrders
	}
	return http.StatusOK, map[string]any{"orders": orders}, nil
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}
