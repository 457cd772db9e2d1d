package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/api/middleware"
	"github.com/anucarts/marketplace-backend/internal/fanout"
	"github.com/anucarts/marketplace-backend/internal/media"
	internalorders "github.com/anucarts/marketplace-backend/internal/orders"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/money"
)

type stubOrderService struct {
	order      *internalorders.OrderDTO
	orders     []internalorders.OrderDTO
	err        error
	lastPlace  internalorders.PlaceOrderInput
	lastUpdate internalorders.UpdateStatusInput
	lastBuyer  uuid.UUID
	lastOrder  uuid.UUID
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, input internalorders.PlaceOrderInput) (*internalorders.OrderDTO, error) {
	s.lastPlace = input
	return s.order, s.err
}

func (s *stubOrderService) GetOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	s.lastBuyer, s.lastOrder = buyerID, orderID
	return s.order, s.err
}

func (s *stubOrderService) ListOrdersForBuyer(ctx context.Context, buyerID uuid.UUID) ([]internalorders.OrderDTO, error) {
	s.lastBuyer = buyerID
	return s.orders, s.err
}

func (s *stubOrderService) ListOrdersForSeller(ctx context.Context, sellerID uuid.UUID) ([]internalorders.OrderDTO, error) {
	return s.orders, s.err
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, input internalorders.UpdateStatusInput) (*internalorders.OrderDTO, error) {
	s.lastUpdate = input
	return s.order, s.err
}

func (s *stubOrderService) ReconcileFanout(ctx context.Context, limit int, minAge time.Duration) (internalorders.ReconcileResult, error) {
	return internalorders.ReconcileResult{}, nil
}

type stubFanoutService struct {
	fanout.Service
	entries []fanout.EntryDTO
}

func (s *stubFanoutService) ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]fanout.EntryDTO, error) {
	return s.entries, nil
}

type stubMediaService struct {
	stored []byte
	scope  media.Scope
}

func (s *stubMediaService) StoreImage(ctx context.Context, scope media.Scope, ownerID uuid.UUID, data []byte) (string, error) {
	s.stored, s.scope = data, scope
	return "https://storage.googleapis.com/anucarts/orders/" + ownerID.String() + ".png", nil
}

func (s *stubMediaService) MaxBytes() int64 { return 1024 }

func principalRequest(method, target, body string, principal uuid.UUID, role enums.Role) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.WithPrincipal(req.Context(), principal, role))
}

func withOrderParam(req *http.Request, orderID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) (string, string, map[string]any) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code, envelope.Error.Message, envelope.Error.Details
}

func TestPlaceOrderMapsPayload(t *testing.T) {
	buyerID := uuid.New()
	productID := uuid.New()
	sellerID := uuid.New()
	svc := &stubOrderService{order: &internalorders.OrderDTO{ID: uuid.New(), OrderTotalPrice: money.FromCents(25000)}}

	body := `{"items":[{"productId":"` + productID.String() + `","sellerId":"` + sellerID.String() + `","name":"Lamp","image":"https://img/lamp.png","price":100,"quantity":2}],` +
		`"orderTotalPrice":"250.00","paymentId":"pay_123","status":"Paid"}`

	resp := httptest.NewRecorder()
	PlaceOrder(svc, nil).ServeHTTP(resp, principalRequest(http.MethodPost, "/orders", body, buyerID, enums.RoleBuyer))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	in := svc.lastPlace
	if in.BuyerID != buyerID || in.PaymentRef != "pay_123" || in.Status != "Paid" || in.DeclaredTotalCents != 25000 {
		t.Fatalf("unexpected input: %+v", in)
	}
	if len(in.Items) != 1 || in.Items[0].ProductID != productID || in.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", in.Items)
	}
	if in.Items[0].SellerID == nil || *in.Items[0].SellerID != sellerID || in.Items[0].ImageURL != "https://img/lamp.png" {
		t.Fatalf("unexpected hints: %+v", in.Items[0])
	}
}

func TestPlaceOrderAcceptsMobileClientBody(t *testing.T) {
	buyerID := uuid.New()
	productID := uuid.New()
	sellerID := uuid.New()
	svc := &stubOrderService{order: &internalorders.OrderDTO{ID: uuid.New()}}

	body := `{"userId":"` + uuid.NewString() + `",` +
		`"items":[{"productId":"` + productID.String() + `","quantity":3,"itemTotalPrice":300,"name":"Lamp",` +
		`"image":"https://img/lamp.png","sellerId":"` + sellerID.String() + `"}],` +
		`"orderTotalPrice":300,"paymentId":"pi_mobile","status":"Paid"}`

	resp := httptest.NewRecorder()
	PlaceOrder(svc, nil).ServeHTTP(resp, principalRequest(http.MethodPost, "/orders", body, buyerID, enums.RoleBuyer))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	in := svc.lastPlace
	if in.BuyerID != buyerID {
		t.Fatalf("expected principal %s as buyer, got %s", buyerID, in.BuyerID)
	}
	if in.DeclaredTotalCents != 30000 || len(in.Items) != 1 || in.Items[0].Quantity != 3 {
		t.Fatalf("unexpected input: %+v", in)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	cases := map[string]string{
		"no items":       `{"items":[],"paymentId":"pay"}`,
		"zero quantity":  `{"items":[{"productId":"` + uuid.NewString() + `","quantity":0}],"paymentId":"pay"}`,
		"missing ref":    `{"items":[{"productId":"` + uuid.NewString() + `","quantity":1}]}`,
		"unknown field":  `{"items":[{"productId":"` + uuid.NewString() + `","quantity":1}],"paymentId":"pay","coupon":"x"}`,
		"negative total": `{"items":[{"productId":"` + uuid.NewString() + `","quantity":1}],"paymentId":"pay","orderTotalPrice":-1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			PlaceOrder(&stubOrderService{}, nil).ServeHTTP(resp, principalRequest(http.MethodPost, "/orders", body, uuid.New(), enums.RoleBuyer))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
		})
	}
}

func TestPlaceOrderFanoutIncompleteExposesOrderID(t *testing.T) {
	orderID := uuid.New()
	failed := uuid.New()
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeFanoutIncomplete, "order saved but seller propagation incomplete").
		WithDetails(map[string]any{"orderId": orderID, "failedSellerIds": []uuid.UUID{failed}})}

	body := `{"items":[{"productId":"` + uuid.NewString() + `","quantity":1}],"paymentId":"pay"}`
	resp := httptest.NewRecorder()
	PlaceOrder(svc, nil).ServeHTTP(resp, principalRequest(http.MethodPost, "/orders", body, uuid.New(), enums.RoleBuyer))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	code, _, details := decodeError(t, resp)
	if code != string(pkgerrors.CodeFanoutIncomplete) {
		t.Fatalf("expected FANOUT_INCOMPLETE got %s", code)
	}
	if details["orderId"] != orderID.String() {
		t.Fatalf("expected order id in details, got %v", details)
	}
}

func TestListEmptyIsNotFound(t *testing.T) {
	resp := httptest.NewRecorder()
	List(&stubOrderService{}, nil).ServeHTTP(resp, principalRequest(http.MethodGet, "/orders", "", uuid.New(), enums.RoleBuyer))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if _, msg, _ := decodeError(t, resp); msg != errNoOrders.Message() {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestListReturnsOrders(t *testing.T) {
	buyerID := uuid.New()
	svc := &stubOrderService{orders: []internalorders.OrderDTO{{ID: uuid.New()}, {ID: uuid.New()}}}

	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, principalRequest(http.MethodGet, "/orders", "", buyerID, enums.RoleBuyer))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Orders []internalorders.OrderDTO `json:"orders"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data.Orders) != 2 || svc.lastBuyer != buyerID {
		t.Fatalf("unexpected response %+v buyer=%s", envelope.Data, svc.lastBuyer)
	}
}

func TestDetailInvalidOrderID(t *testing.T) {
	req := withOrderParam(principalRequest(http.MethodGet, "/orders/abc", "", uuid.New(), enums.RoleBuyer), "abc")
	resp := httptest.NewRecorder()
	Detail(&stubOrderService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestDetailPassesBuyerAndOrder(t *testing.T) {
	buyerID, orderID := uuid.New(), uuid.New()
	svc := &stubOrderService{order: &internalorders.OrderDTO{ID: orderID}}

	req := withOrderParam(principalRequest(http.MethodGet, "/orders/"+orderID.String(), "", buyerID, enums.RoleBuyer), orderID.String())
	resp := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastBuyer != buyerID || svc.lastOrder != orderID {
		t.Fatalf("unexpected call buyer=%s order=%s", svc.lastBuyer, svc.lastOrder)
	}
}

func TestSellerOrdersEmptyIsNotFound(t *testing.T) {
	resp := httptest.NewRecorder()
	SellerOrders(&stubOrderService{}, nil).ServeHTTP(resp, principalRequest(http.MethodGet, "/orders/seller/orders", "", uuid.New(), enums.RoleSeller))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestSellerEntriesEmptyIsOK(t *testing.T) {
	resp := httptest.NewRecorder()
	SellerEntries(&stubFanoutService{}, nil).ServeHTTP(resp, principalRequest(http.MethodGet, "/orders/seller/entries", "", uuid.New(), enums.RoleSeller))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestUpdateStatusMapsPayload(t *testing.T) {
	sellerID, orderID := uuid.New(), uuid.New()
	svc := &stubOrderService{order: &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusShipped}}

	req := withOrderParam(principalRequest(http.MethodPut, "/orders/"+orderID.String()+"/status", `{"orderStatus":"Shipped"}`, sellerID, enums.RoleSeller), orderID.String())
	resp := httptest.NewRecorder()
	UpdateStatus(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	want := internalorders.UpdateStatusInput{OrderID: orderID, SellerID: sellerID, Status: "Shipped"}
	if svc.lastUpdate != want {
		t.Fatalf("unexpected input %+v", svc.lastUpdate)
	}
}

func TestUpdateStatusStateConflict(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state")}

	req := withOrderParam(principalRequest(http.MethodPut, "/orders/x/status", `{"orderStatus":"Shipped"}`, uuid.New(), enums.RoleSeller), orderID.String())
	resp := httptest.NewRecorder()
	UpdateStatus(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUploadImage(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "line.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("\x89PNG\r\n\x1a\n")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	buyerID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/orders/images", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = req.WithContext(middleware.WithPrincipal(req.Context(), buyerID, enums.RoleBuyer))

	svc := &stubMediaService{}
	resp := httptest.NewRecorder()
	UploadImage(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.scope != media.ScopeOrderLine || len(svc.stored) != 8 {
		t.Fatalf("unexpected upload scope=%s bytes=%d", svc.scope, len(svc.stored))
	}
}

func TestUploadImageRequiresFile(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("note", "no file"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/orders/images", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = req.WithContext(middleware.WithPrincipal(req.Context(), uuid.New(), enums.RoleBuyer))

	resp := httptest.NewRecorder()
	UploadImage(&stubMediaService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
