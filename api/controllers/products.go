package controllers

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/api/middleware"
	"github.com/anucarts/marketplace-backend/api/responses"
	"github.com/anucarts/marketplace-backend/api/validators"
	productsvc "github.com/anucarts/marketplace-backend/internal/products"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/money"
	"github.com/anucarts/marketplace-backend/pkg/pagination"
)

const (
	maxProductNameLen        = 200
	maxProductDescriptionLen = 2000
)

// createProductForm is the multipart payload of the create endpoint.
type createProductForm struct {
	Name        string `validate:"required"`
	Description string
	Price       string `validate:"required"`
	Stock       string
	ImageURL    string `validate:"omitempty,url"`
}

func (f createProductForm) toCreateInput(image []byte) (productsvc.CreateProductInput, error) {
	price, err := money.Parse(f.Price)
	if err != nil {
		return productsvc.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}
	stock := 0
	if f.Stock != "" {
		stock, err = strconv.Atoi(f.Stock)
		if err != nil {
			return productsvc.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stock")
		}
	}
	return productsvc.CreateProductInput{
		Name:        validators.SanitizeString(f.Name, maxProductNameLen),
		Description: validators.SanitizeString(f.Description, maxProductDescriptionLen),
		PriceCents:  price.Cents(),
		Stock:       stock,
		ImageURL:    f.ImageURL,
		Image:       image,
	}, nil
}

type updateProductRequest struct {
	Name        *string       `json:"name"`
	Description *string       `json:"description"`
	Price       *money.Amount `json:"price"`
	Stock       *int          `json:"stock"`
	ImageURL    *string       `json:"imageUrl" validate:"omitempty,url"`
}

func (r updateProductRequest) toUpdateInput() productsvc.UpdateProductInput {
	input := productsvc.UpdateProductInput{
		Stock:    r.Stock,
		ImageURL: r.ImageURL,
	}
	if r.Name != nil {
		name := validators.SanitizeString(*r.Name, maxProductNameLen)
		input.Name = &name
	}
	if r.Description != nil {
		description := validators.SanitizeString(*r.Description, maxProductDescriptionLen)
		input.Description = &description
	}
	if r.Price != nil {
		cents := r.Price.Cents()
		input.PriceCents = &cents
	}
	return input
}

// ProductList serves the public catalog one cursor page at a time.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListProducts(r.Context(), productsvc.ListProductsInput{
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// SellerProducts lists the authenticated seller's own products.
func SellerProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		sellerID, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products, err := svc.ListSellerProducts(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": products})
	}
}

// ProductCreate accepts a multipart form with an optional image part.
func ProductCreate(svc productsvc.Service, maxImageBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		sellerID, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := validators.ParseMultipart(r, maxImageBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		form := createProductForm{
			Name:        strings.TrimSpace(r.FormValue("name")),
			Description: strings.TrimSpace(r.FormValue("description")),
			Price:       strings.TrimSpace(r.FormValue("price")),
			Stock:       strings.TrimSpace(r.FormValue("stock")),
			ImageURL:    strings.TrimSpace(r.FormValue("imageUrl")),
		}
		if err := validators.ValidateStruct(form); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		image, err := validators.FormFile(r, "image", maxImageBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := form.toCreateInput(image)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), sellerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// ProductUpdate applies a partial edit. It takes either a JSON body or a
// multipart form whose optional image part replaces the product image.
func ProductUpdate(svc productsvc.Service, maxImageBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		sellerID, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input productsvc.UpdateProductInput
		if isMultipart(r) {
			input, err = updateFromForm(r, maxImageBytes)
		} else {
			var payload updateProductRequest
			err = validators.DecodeJSONBody(r, &payload)
			input = payload.toUpdateInput()
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), sellerID, productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// updateFromForm reads the multipart edit payload. Fields absent from the
// form are left unchanged.
func updateFromForm(r *http.Request, maxImageBytes int64) (productsvc.UpdateProductInput, error) {
	if err := validators.ParseMultipart(r, maxImageBytes); err != nil {
		return productsvc.UpdateProductInput{}, err
	}
	field := func(key string) *string {
		values := r.MultipartForm.Value[key]
		if len(values) == 0 {
			return nil
		}
		v := strings.TrimSpace(values[0])
		return &v
	}

	payload := updateProductRequest{
		Name:        field("name"),
		Description: field("description"),
		ImageURL:    field("imageUrl"),
	}
	if raw := field("price"); raw != nil {
		price, err := money.Parse(*raw)
		if err != nil {
			return productsvc.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
		}
		payload.Price = &price
	}
	if raw := field("stock"); raw != nil {
		stock, err := strconv.Atoi(*raw)
		if err != nil {
			return productsvc.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stock")
		}
		payload.Stock = &stock
	}
	if err := validators.ValidateStruct(payload); err != nil {
		return productsvc.UpdateProductInput{}, err
	}

	image, err := validators.FormFile(r, "image", maxImageBytes)
	if err != nil {
		return productsvc.UpdateProductInput{}, err
	}
	input := payload.toUpdateInput()
	input.Image = image
	return input, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func ProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		sellerID, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), sellerID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted", "productId": productID.String()})
	}
}

func productIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}
