// Package accounts holds the persistence shared by the two principal tables,
// buyers (users) and sellers. Both are looked up by a normalized email and
// stamped on every successful login.
package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
)

// Principal is a row type that can sign in.
type Principal interface {
	models.User | models.Seller
}

// Store is the gorm access path for one principal table.
type Store[P Principal] struct {
	db *gorm.DB
}

func NewStore[P Principal](db *gorm.DB) Store[P] {
	return Store[P]{db: db}
}

// NormalizeEmail is the canonical form emails are stored and queried in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s Store[P]) Insert(ctx context.Context, row *P) error {
	return s.db.WithContext(ctx).Create(row).Error
}

// FindByEmail returns gorm.ErrRecordNotFound when no row matches.
func (s Store[P]) FindByEmail(ctx context.Context, email string) (*P, error) {
	return s.first(ctx, "email = ?", NormalizeEmail(email))
}

func (s Store[P]) FindByID(ctx context.Context, id uuid.UUID) (*P, error) {
	return s.first(ctx, "id = ?", id)
}

func (s Store[P]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(new(P)).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// UpdateLastLogin writes the column directly so updated_at keeps tracking
// profile edits only.
func (s Store[P]) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.db.WithContext(ctx).Model(new(P)).Where("id = ?", id).UpdateColumn("last_login_at", at.UTC()).Error
}

func (s Store[P]) first(ctx context.Context, query string, arg any) (*P, error) {
	row := new(P)
	if err := s.db.WithContext(ctx).Where(query, arg).Take(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}
