package cart

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/api/middleware"
	"github.com/anucarts/marketplace-backend/api/responses"
	"github.com/anucarts/marketplace-backend/api/validators"
	"github.com/anucarts/marketplace-backend/internal/cart"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

type cartService interface {
	AddItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*cart.CartDTO, error)
	RemoveItem(ctx context.Context, buyerID, productID uuid.UUID) (*cart.CartDTO, error)
	SetQuantity(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*cart.CartDTO, error)
	GetCart(ctx context.Context, buyerID uuid.UUID) (*cart.CartDTO, error)
}

// action performs one cart operation for the authenticated buyer and returns
// the cart as it stands afterwards.
type action func(r *http.Request, svc cartService, buyerID uuid.UUID) (*cart.CartDTO, error)

func handle(svc cartService, logg *logger.Logger, status int, act action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		buyerID, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := act(r, svc, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, view)
	}
}

// CartFetch returns the buyer's cart with line and cart totals.
func CartFetch(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request, svc cartService, buyerID uuid.UUID) (*cart.CartDTO, error) {
		return svc.GetCart(r.Context(), buyerID)
	})
}

// CartAdd adds a product to the cart, merging into an existing entry.
func CartAdd(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusCreated, func(r *http.Request, svc cartService, buyerID uuid.UUID) (*cart.CartDTO, error) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddItem(r.Context(), buyerID, payload.ProductID, payload.quantity())
	})
}

func CartSetQuantity(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request, svc cartService, buyerID uuid.UUID) (*cart.CartDTO, error) {
		productID, err := productIDParam(r)
		if err != nil {
			return nil, err
		}
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.SetQuantity(r.Context(), buyerID, productID, payload.Quantity)
	})
}

// CartRemove drops an entry. Removing an absent entry still succeeds.
func CartRemove(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, http.StatusOK, func(r *http.Request, svc cartService, buyerID uuid.UUID) (*cart.CartDTO, error) {
		productID, err := productIDParam(r)
		if err != nil {
			return nil, err
		}
		return svc.RemoveItem(r.Context(), buyerID, productID)
	})
}

func productIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "productId")))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}
