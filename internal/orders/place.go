package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anucarts/marketplace-backend/internal/cart"
	"github.com/anucarts/marketplace-backend/internal/fanout"
	"github.com/anucarts/marketplace-backend/pkg/db"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/metrics"
	"github.com/anucarts/marketplace-backend/pkg/outbox"
	"github.com/anucarts/marketplace-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// PlaceOrder validates and persists a checkout, then propagates it to every
// seller's worklist. When propagation is partial the order stays persisted
// and is returned together with a FANOUT_INCOMPLETE error.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer not found")
	}
	exists, err := s.users.Exists(ctx, input.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load buyer")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer not found")
	}

	status, err := initialStatus(input.Status)
	if err != nil {
		return nil, err
	}
	paymentRef := strings.TrimSpace(input.PaymentRef)
	if paymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	// A retry of a recorded payment returns the stored order even if the
	// catalog has changed since.
	if existing, err := s.findReplay(ctx, input.BuyerID, paymentRef); err != nil {
		return nil, err
	} else if existing != nil {
		return s.finish(ctx, existing, true)
	}
	if input.DeclaredTotalCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must not be negative")
	}
	items, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}
	lines, total, err := s.priceLines(ctx, items)
	if err != nil {
		return nil, err
	}
	if input.DeclaredTotalCents > 0 && input.DeclaredTotalCents != total {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total does not match items").
			WithDetails(map[string]any{
				"declaredTotalCents": input.DeclaredTotalCents,
				"computedTotalCents": total,
			})
	}

	now := s.now()
	order := &models.Order{
		ID:         uuid.New(),
		BuyerID:    input.BuyerID,
		TotalCents: total,
		PaymentRef: paymentRef,
		Status:     status,
		LineItems:  lines,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, placedEvent(order)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order placed")
		}
		if s.clearCart {
			if _, err := cart.NewRepository(tx).RemoveProductsForBuyer(ctx, order.BuyerID, productIDs(order.LineItems)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear ordered cart items")
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			// lost the race on payment_ref; resolve like a replay
			existing, findErr := s.findReplay(ctx, input.BuyerID, paymentRef)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return s.finish(ctx, existing, true)
			}
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist order")
	}

	if s.clearCart && s.cart != nil {
		s.cart.Invalidate(ctx, order.BuyerID)
	}
	return s.finish(ctx, order, false)
}

func (s *service) finish(ctx context.Context, order *models.Order, replay bool) (*OrderDTO, error) {
	err := s.fanOut(ctx, order, true)
	if !replay {
		s.metrics.IncPlaced(order.FanoutComplete)
	}
	return FromModel(order), err
}

// findReplay returns the order already recorded for paymentRef, or nil. A
// reference owned by another buyer is a conflict.
func (s *service) findReplay(ctx context.Context, buyerID uuid.UUID, paymentRef string) (*models.Order, error) {
	existing, err := s.repo.FindByPaymentRef(ctx, paymentRef)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by payment reference")
	}
	if existing.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment reference already used")
	}
	return existing, nil
}

// ReconcileFanout re-drives propagation for orders left incomplete, oldest
// first. Entries already written are skipped by the fan-out index.
func (s *service) ReconcileFanout(ctx context.Context, limit int, minAge time.Duration) (ReconcileResult, error) {
	if limit <= 0 {
		limit = defaultReconcileBatch
	}
	cutoff := s.now().Add(-minAge)
	pending, err := s.repo.ListIncompleteFanout(ctx, cutoff, limit)
	if err != nil {
		return ReconcileResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list incomplete orders")
	}

	result := ReconcileResult{Scanned: len(pending)}
	var errs error
	for i := range pending {
		if ctxErr := ctx.Err(); ctxErr != nil {
			errs = multierr.Append(errs, ctxErr)
			break
		}
		if err := s.fanOut(ctx, &pending[i], false); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", pending[i].ID, err))
			continue
		}
		result.Completed++
	}
	return result, errs
}

type sellerBatch struct {
	sellerID uuid.UUID
	entries  []fanout.Entry
}

// fanOut appends the order's lines to each seller's worklist, one transaction
// per seller. Sellers that fail are collected rather than aborting the rest.
func (s *service) fanOut(ctx context.Context, order *models.Order, reportFailure bool) error {
	if order.FanoutComplete {
		return nil
	}

	var (
		errs   error
		failed []uuid.UUID
	)
	for _, batch := range groupBySeller(order) {
		sellerCtx, cancel := context.WithTimeout(ctx, s.fanoutTimeout)
		_, err := s.fanout.AppendEntries(sellerCtx, batch.sellerID, batch.entries)
		cancel()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("seller %s: %w", batch.sellerID, err))
			failed = append(failed, batch.sellerID)
			s.metrics.IncFanout(metrics.FanoutFailed)
			continue
		}
		s.metrics.IncFanout(metrics.FanoutSucceeded)
	}

	if errs == nil {
		now := s.now()
		if err := s.repo.MarkFanoutComplete(ctx, order.ID, now); err != nil {
			// entries are written; reconcile will set the flag
			s.warn(ctx, "mark fanout complete failed", err)
			return nil
		}
		order.FanoutComplete = true
		order.UpdatedAt = now
		return nil
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"failed_sellers": len(failed),
		})
		s.logg.Error(logCtx, "order fanout incomplete", errs)
	}
	if reportFailure {
		emitErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.Emit(ctx, tx, fanoutFailedEvent(order, failed, errs))
		})
		if emitErr != nil {
			errs = multierr.Append(errs, emitErr)
		}
	}

	return pkgerrors.Wrap(pkgerrors.CodeFanoutIncomplete, errs, "order saved but seller propagation incomplete").
		WithDetails(map[string]any{
			"orderId":         order.ID,
			"failedSellerIds": failed,
		})
}

func groupBySeller(order *models.Order) []sellerBatch {
	index := make(map[uuid.UUID]int)
	var batches []sellerBatch
	for _, line := range order.LineItems {
		pos, ok := index[line.SellerID]
		if !ok {
			pos = len(batches)
			index[line.SellerID] = pos
			batches = append(batches, sellerBatch{sellerID: line.SellerID})
		}
		batches[pos].entries = append(batches[pos].entries, fanout.Entry{
			OrderID:        order.ID,
			BuyerID:        order.BuyerID,
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			LineTotalCents: line.LineTotalCents,
			Status:         order.Status,
		})
	}
	return batches
}

func initialStatus(raw string) (enums.OrderStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return enums.OrderStatusPending, nil
	}
	status, err := enums.ParseOrderStatus(raw)
	if err != nil || !status.IsInitial() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "initial status must be Pending or Paid").
			WithDetails(map[string]any{"status": raw})
	}
	return status, nil
}

// mergeItems folds repeated product ids into one line, summing quantities and
// keeping the first occurrence's hints.
func mergeItems(items []LineItemInput) ([]LineItemInput, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	index := make(map[uuid.UUID]int, len(items))
	merged := make([]LineItemInput, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		pos, ok := index[item.ProductID]
		if !ok {
			index[item.ProductID] = len(merged)
			merged = append(merged, item)
			continue
		}
		prev := &merged[pos]
		if item.SellerID != nil && prev.SellerID != nil && *item.SellerID != *prev.SellerID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "conflicting sellers for product").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		if prev.SellerID == nil {
			prev.SellerID = item.SellerID
		}
		prev.Quantity += item.Quantity
	}
	return merged, nil
}

// priceLines freezes each line against the catalog and returns the computed
// order total in cents.
func (s *service) priceLines(ctx context.Context, items []LineItemInput) ([]models.OrderLineItem, int64, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	lines := make([]models.OrderLineItem, 0, len(items))
	var total int64
	for i, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "product not found").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		if item.SellerID != nil && *item.SellerID != product.SellerID {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "seller does not match product").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = product.Name
		}
		image := strings.TrimSpace(item.ImageURL)
		if image == "" {
			image = product.ImageURL
		}
		if image == "" {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "item image required").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		lineTotal := int64(item.Quantity) * product.PriceCents
		total += lineTotal
		lines = append(lines, models.OrderLineItem{
			ProductID:      product.ID,
			SellerID:       product.SellerID,
			Name:           name,
			ImageURL:       image,
			UnitPriceCents: product.PriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: lineTotal,
			Position:       i,
		})
	}
	return lines, total, nil
}

func productIDs(lines []models.OrderLineItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func placedEvent(order *models.Order) outbox.Event {
	data := payloads.OrderPlacedEvent{
		OrderID:    order.ID,
		BuyerID:    order.BuyerID,
		PaymentRef: order.PaymentRef,
		TotalCents: order.TotalCents,
		Status:     order.Status,
	}
	seen := make(map[uuid.UUID]struct{})
	for _, line := range order.LineItems {
		if _, ok := seen[line.SellerID]; !ok {
			seen[line.SellerID] = struct{}{}
			data.SellerIDs = append(data.SellerIDs, line.SellerID)
		}
		data.Lines = append(data.Lines, payloads.OrderLine{
			ProductID:      line.ProductID,
			SellerID:       line.SellerID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			LineTotalCents: line.LineTotalCents,
		})
	}
	return outbox.Event{
		Type:        enums.EventOrderPlaced,
		Aggregate:   enums.AggregateOrder,
		AggregateID: order.ID,
		Actor:       &outbox.Actor{ID: order.BuyerID, Role: enums.RoleBuyer},
		Data:        data,
	}
}

func fanoutFailedEvent(order *models.Order, failed []uuid.UUID, cause error) outbox.Event {
	return outbox.Event{
		Type:        enums.EventOrderFanoutFailed,
		Aggregate:   enums.AggregateOrder,
		AggregateID: order.ID,
		Data: payloads.OrderFanoutFailedEvent{
			OrderID:         order.ID,
			BuyerID:         order.BuyerID,
			FailedSellerIDs: failed,
			Reason:          cause.Error(),
		},
	}
}
