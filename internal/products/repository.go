package product

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/pagination"
)

// newestFirst is the catalog's only ordering. id breaks created_at ties so
// keyset pages never overlap.
const newestFirst = "created_at DESC, id DESC"

// Repository persists catalog listings.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Product{})
}

// FindByID returns gorm.ErrRecordNotFound for unknown ids.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product := new(models.Product)
	if err := r.scoped(ctx).Where("id = ?", id).Take(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// FindByIDs loads products keyed by id. Unknown ids are simply absent.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	found := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []models.Product
	if err := r.scoped(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		found[rows[i].ID] = rows[i]
	}
	return found, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return product, r.db.WithContext(ctx).Create(product).Error
}

// UpdateProduct writes every column of product back to its row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	return product, r.db.WithContext(ctx).Save(product).Error
}

func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error
}

func (r *Repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.scoped(ctx).Where("seller_id = ?", sellerID).Order(newestFirst).Find(&rows).Error
	return rows, err
}

// ListPage returns one keyset page of the whole catalog plus the cursor of
// the next page, "" on the last one.
func (r *Repository) ListPage(ctx context.Context, params pagination.Params) ([]models.Product, string, error) {
	after, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.scoped(ctx)
	if after != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []models.Product
	if err := q.Order(newestFirst).Limit(params.Probe()).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	page, next := pagination.Cut(rows, params, func(p models.Product) pagination.Key {
		return pagination.Key{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}
