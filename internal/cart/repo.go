package cart

import (
	"context"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByBuyer loads the buyer's cart with items in insertion order.
func (r *Repository) FindByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("buyer_id = ?", buyerID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetOrCreate returns the buyer's cart, creating it when absent. The unique
// buyer_id index makes concurrent creation converge on one row.
func (r *Repository) GetOrCreate(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	fresh := &models.Cart{ID: uuid.New(), BuyerID: buyerID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "buyer_id"}}, DoNothing: true}).
		Create(fresh).Error; err != nil {
		return nil, err
	}
	var cart models.Cart
	if err := r.db.WithContext(ctx).Where("buyer_id = ?", buyerID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpsertItem inserts the item or, when the product is already in the cart,
// adds its quantity to the existing entry. Existing snapshots are kept.
func (r *Repository) UpsertItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
				"updated_at": gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(item).Error
}

// SetQuantity replaces the quantity of an entry and reports whether it existed.
func (r *Repository) SetQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Updates(map[string]any{"quantity": quantity, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteItems removes the given products from the cart. Absent products are
// ignored.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID, productIDs []uuid.UUID) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id IN ?", cartID, productIDs).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// RemoveProductsForBuyer deletes the given products from the buyer's cart,
// if the buyer has one.
func (r *Repository) RemoveProductsForBuyer(ctx context.Context, buyerID uuid.UUID, productIDs []uuid.UUID) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	sub := r.db.WithContext(ctx).Model(&models.Cart{}).Select("id").Where("buyer_id = ?", buyerID)
	res := r.db.WithContext(ctx).
		Where("cart_id IN (?) AND product_id IN ?", sub, productIDs).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
