package orders

import (
	"context"
	"time"

	"github.com/anucarts/marketplace-backend/internal/fanout"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/anucarts/marketplace-backend/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	ListIncompleteFanout(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, at time.Time) error
	MarkFanoutComplete(ctx context.Context, id uuid.UUID, at time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

type buyerDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type productCatalog interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// fanoutWriter is the slice of the fan-out service the ledger drives.
type fanoutWriter interface {
	AppendEntries(ctx context.Context, sellerID uuid.UUID, entries []fanout.Entry) (int, error)
	OrderIDsForSeller(ctx context.Context, sellerID uuid.UUID) ([]uuid.UUID, error)
}

type cartInvalidator interface {
	Invalidate(ctx context.Context, buyerID uuid.UUID)
}
