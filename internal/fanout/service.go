package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service maintains each seller's worklist of order lines.
type Service interface {
	AppendEntry(ctx context.Context, sellerID uuid.UUID, entry Entry) (bool, error)
	AppendEntries(ctx context.Context, sellerID uuid.UUID, entries []Entry) (int, error)
	UpdateStatusForOrder(ctx context.Context, sellerID, orderID uuid.UUID, status enums.OrderStatus) (int64, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]EntryDTO, error)
	OrderIDsForSeller(ctx context.Context, sellerID uuid.UUID) ([]uuid.UUID, error)
	EntriesForOrder(ctx context.Context, orderID uuid.UUID) ([]EntryDTO, error)
}

type service struct {
	repo *Repository
	tx   txRunner
	now  func() time.Time
}

// NewService builds the fan-out service.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fanout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, now: func() time.Time { return time.Now().UTC() }}, nil
}

// AppendEntry records a single order line for the seller. Re-appending the
// same (order, product) is a no-op and returns false.
func (s *service) AppendEntry(ctx context.Context, sellerID uuid.UUID, entry Entry) (bool, error) {
	created, err := s.AppendEntries(ctx, sellerID, []Entry{entry})
	return created == 1, err
}

// AppendEntries records the lines for one seller in a single transaction and
// returns how many were newly written.
func (s *service) AppendEntries(ctx context.Context, sellerID uuid.UUID, entries []Entry) (int, error) {
	if sellerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	for _, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return 0, err
		}
	}
	if len(entries) == 0 {
		return 0, nil
	}

	created := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.GetOrCreateRecord(ctx, sellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller fanout record")
		}
		for _, entry := range entries {
			inserted, err := repo.InsertEntry(ctx, &models.FanoutEntry{
				FanoutID:       record.ID,
				SellerID:       sellerID,
				OrderID:        entry.OrderID,
				BuyerID:        entry.BuyerID,
				ProductID:      entry.ProductID,
				Quantity:       entry.Quantity,
				LineTotalCents: entry.LineTotalCents,
				Status:         entry.Status,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert fanout entry")
			}
			if inserted {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (s *service) UpdateStatusForOrder(ctx context.Context, sellerID, orderID uuid.UUID, status enums.OrderStatus) (int64, error) {
	if !status.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	updated, err := s.repo.UpdateStatusForSellerOrder(ctx, sellerID, orderID, status, s.now())
	if err != nil {
		return 0, MapError(err, "update fanout status")
	}
	return updated, nil
}

// ListForSeller returns the seller's entries newest first. A seller without a
// record has an empty worklist.
func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID) ([]EntryDTO, error) {
	record, err := s.repo.FindRecord(ctx, sellerID)
	if errors.Is(err, ErrNoRecord) {
		return []EntryDTO{}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller fanout record")
	}
	rows, err := s.repo.ListByFanout(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list fanout entries")
	}
	return toDTOs(rows), nil
}

func (s *service) OrderIDsForSeller(ctx context.Context, sellerID uuid.UUID) ([]uuid.UUID, error) {
	record, err := s.repo.FindRecord(ctx, sellerID)
	if errors.Is(err, ErrNoRecord) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller fanout record")
	}
	ids, err := s.repo.DistinctOrderIDs(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list seller order ids")
	}
	return ids, nil
}

func (s *service) EntriesForOrder(ctx context.Context, orderID uuid.UUID) ([]EntryDTO, error) {
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list order fanout entries")
	}
	return toDTOs(rows), nil
}

// MapError converts repository errors into typed API errors.
func MapError(err error, action string) error {
	if errors.Is(err, ErrNoRecord) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "seller has no orders")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}

func validateEntry(entry Entry) error {
	if entry.OrderID == uuid.Nil || entry.ProductID == uuid.Nil || entry.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "fanout entry requires order, buyer, and product ids")
	}
	if entry.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "fanout entry quantity must be positive")
	}
	if entry.LineTotalCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "fanout entry total must be non-negative")
	}
	if !entry.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid fanout entry status")
	}
	return nil
}
