package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anucarts/marketplace-backend/internal/fanout"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/metrics"
	"github.com/anucarts/marketplace-backend/pkg/outbox"
	"github.com/anucarts/marketplace-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultFanoutTimeout  = 5 * time.Second
	defaultReconcileBatch = 50
)

// Service is the authoritative order ledger.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error)
	ListOrdersForBuyer(ctx context.Context, buyerID uuid.UUID) ([]OrderDTO, error)
	ListOrdersForSeller(ctx context.Context, sellerID uuid.UUID) ([]OrderDTO, error)
	UpdateOrderStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	ReconcileFanout(ctx context.Context, limit int, minAge time.Duration) (ReconcileResult, error)
}

// ServiceParams bundles the ledger dependencies. Cart, Metrics and Logger are
// optional.
type ServiceParams struct {
	Repo                Repository
	DB                  txRunner
	Users               buyerDirectory
	Products            productCatalog
	Fanout              fanoutWriter
	Outbox              outboxEmitter
	Cart                cartInvalidator
	Metrics             *metrics.OrderMetrics
	Logger              *logger.Logger
	FanoutTimeout       time.Duration
	ClearCartOnCheckout bool
}

type service struct {
	repo          Repository
	tx            txRunner
	users         buyerDirectory
	products      productCatalog
	fanout        fanoutWriter
	outbox        outboxEmitter
	cart          cartInvalidator
	metrics       *metrics.OrderMetrics
	logg          *logger.Logger
	fanoutTimeout time.Duration
	clearCart     bool
	now           func() time.Time
}

// NewService builds the order ledger with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Users == nil:
		return nil, fmt.Errorf("buyer directory required")
	case params.Products == nil:
		return nil, fmt.Errorf("product catalog required")
	case params.Fanout == nil:
		return nil, fmt.Errorf("fanout writer required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	timeout := params.FanoutTimeout
	if timeout <= 0 {
		timeout = defaultFanoutTimeout
	}
	return &service{
		repo:          params.Repo,
		tx:            params.DB,
		users:         params.Users,
		products:      params.Products,
		fanout:        params.Fanout,
		outbox:        params.Outbox,
		cart:          params.Cart,
		metrics:       params.Metrics,
		logg:          params.Logger,
		fanoutTimeout: timeout,
		clearCart:     params.ClearCartOnCheckout,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) GetOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return FromModel(order), nil
}

// ListOrdersForBuyer returns the buyer's orders newest first. No orders is an
// empty slice, not an error.
func (s *service) ListOrdersForBuyer(ctx context.Context, buyerID uuid.UUID) ([]OrderDTO, error) {
	exists, err := s.users.Exists(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load buyer")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
	}
	rows, err := s.repo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list buyer orders")
	}
	return fromModels(rows), nil
}

// ListOrdersForSeller resolves the seller's orders through the fan-out index.
func (s *service) ListOrdersForSeller(ctx context.Context, sellerID uuid.UUID) ([]OrderDTO, error) {
	ids, err := s.fanout.OrderIDsForSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list seller orders")
	}
	return fromModels(rows), nil
}

// UpdateOrderStatus moves the order and the requesting seller's fan-out
// entries to status in one transaction. Re-applying the current non-terminal
// status only re-syncs the seller's entries.
func (s *service) UpdateOrderStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	status, err := enums.ParseOrderStatus(strings.TrimSpace(input.Status))
	if err != nil || !status.IsSellerSettable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": input.Status})
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller identity required")
	}

	var (
		updated  *models.Order
		previous enums.OrderStatus
		touched  int64
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if !sellerOwnsLine(order, input.SellerID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
		}

		fanoutRepo := fanout.NewRepository(tx)
		if _, err := fanoutRepo.FindRecord(ctx, input.SellerID); err != nil {
			return fanout.MapError(err, "load seller fanout record")
		}

		// A terminal order only accepts its own status, so sellers that have
		// not caught up can still sync their entries.
		if order.Status.IsTerminal() && status != order.Status {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state").
				WithDetails(map[string]any{"currentStatus": order.Status})
		}
		if status != order.Status && !order.Status.CanTransitionTo(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal status transition").
				WithDetails(map[string]any{
					"currentStatus": order.Status,
					"nextStatus":    status,
					"allowed":       order.Status.NextStatuses(),
				})
		}

		now := s.now()
		touched, err = fanoutRepo.UpdateStatusForSellerOrder(ctx, input.SellerID, order.ID, status, now)
		if err != nil {
			return fanout.MapError(err, "update fanout status")
		}

		previous = order.Status
		if status != order.Status {
			if err := repo.UpdateStatus(ctx, order.ID, status, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
			}
			order.Status = status
			order.UpdatedAt = now
		}

		event := outbox.Event{
			Type:        enums.EventOrderStatusChanged,
			Aggregate:   enums.AggregateOrder,
			AggregateID: order.ID,
			Actor:       &outbox.Actor{ID: input.SellerID, Role: enums.RoleSeller},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        order.ID,
				BuyerID:        order.BuyerID,
				SellerID:       input.SellerID,
				PreviousStatus: previous,
				Status:         status,
				EntriesUpdated: touched,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status change")
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncStatusChange(string(status))
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, updated.ID.String()), map[string]any{
			"seller_id":       input.SellerID.String(),
			"previous_status": previous,
			"status":          status,
			"entries_updated": touched,
		})
		s.logg.Info(logCtx, "order status updated")
	}
	return FromModel(updated), nil
}

func sellerOwnsLine(order *models.Order, sellerID uuid.UUID) bool {
	for _, line := range order.LineItems {
		if line.SellerID == sellerID {
			return true
		}
	}
	return false
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
