package orders

import (
	"context"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and then its lines. IDs are assigned here so the
// caller can reference them before commit.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	lines := order.LineItems
	if err := r.db.WithContext(ctx).Omit("LineItems").Create(order).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		if lines[i].ID == uuid.Nil {
			lines[i].ID = uuid.New()
		}
		lines[i].OrderID = order.ID
	}
	if err := r.db.WithContext(ctx).Create(&lines).Error; err != nil {
		return err
	}
	order.LineItems = lines
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", orderedLines).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row for the rest of the transaction.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	var lines []models.OrderLineItem
	if err := orderedLines(r.db.WithContext(ctx)).Where("order_id = ?", id).Find(&lines).Error; err != nil {
		return nil, err
	}
	order.LineItems = lines
	return &order, nil
}

func (r *repository) FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", orderedLines).
		Where("payment_ref = ?", paymentRef).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", orderedLines).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	if len(ids) == 0 {
		return []models.Order{}, nil
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", orderedLines).
		Where("id IN ?", ids).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	return orders, err
}

// ListIncompleteFanout returns the oldest orders whose seller propagation has
// not finished, skipping rows newer than createdBefore.
func (r *repository) ListIncompleteFanout(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", orderedLines).
		Where("fanout_complete = ? AND created_at <= ?", false, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": at}).Error
}

func (r *repository) MarkFanoutComplete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"fanout_complete": true, "updated_at": at}).Error
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
