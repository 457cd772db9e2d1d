package fanout

import (
	"context"
	"errors"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoRecord is returned when the seller has never received a fan-out entry.
var ErrNoRecord = errors.New("seller fanout record not found")

// Repository persists seller fan-out records and their entries.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a fan-out repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// GetOrCreateRecord returns the seller's record, creating it on first use.
// Concurrent creators converge on the row that won the unique seller_id index.
func (r *Repository) GetOrCreateRecord(ctx context.Context, sellerID uuid.UUID) (*models.SellerFanout, error) {
	fresh := &models.SellerFanout{ID: uuid.New(), SellerID: sellerID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "seller_id"}}, DoNothing: true}).
		Create(fresh).Error; err != nil {
		return nil, err
	}
	return r.FindRecord(ctx, sellerID)
}

// FindRecord loads the seller's record or returns ErrNoRecord.
func (r *Repository) FindRecord(ctx context.Context, sellerID uuid.UUID) (*models.SellerFanout, error) {
	var record models.SellerFanout
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// InsertEntry adds the entry unless one already exists for the same
// (order_id, product_id). It reports whether a row was written.
func (r *Repository) InsertEntry(ctx context.Context, entry *models.FanoutEntry) (bool, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateStatusForSellerOrder sets status on every entry of the seller that
// belongs to orderID and returns the number of rows touched.
func (r *Repository) UpdateStatusForSellerOrder(ctx context.Context, sellerID, orderID uuid.UUID, status enums.OrderStatus, at time.Time) (int64, error) {
	record, err := r.FindRecord(ctx, sellerID)
	if err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.FanoutEntry{}).
		Where("fanout_id = ? AND order_id = ?", record.ID, orderID).
		Updates(map[string]any{"status": status, "updated_at": at})
	return res.RowsAffected, res.Error
}

// ListByFanout returns the record's entries, newest first.
func (r *Repository) ListByFanout(ctx context.Context, fanoutID uuid.UUID) ([]models.FanoutEntry, error) {
	var rows []models.FanoutEntry
	err := r.db.WithContext(ctx).
		Where("fanout_id = ?", fanoutID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// DistinctOrderIDs returns the order ids present under the record.
func (r *Repository) DistinctOrderIDs(ctx context.Context, fanoutID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.FanoutEntry{}).
		Where("fanout_id = ?", fanoutID).
		Distinct("order_id").
		Pluck("order_id", &ids).Error
	return ids, err
}

// ListByOrder returns every entry an order fanned out to.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FanoutEntry, error) {
	var rows []models.FanoutEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("seller_id ASC").
		Order("product_id ASC").
		Find(&rows).Error
	return rows, err
}
