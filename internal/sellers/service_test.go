package sellers

import (
	"context"
	"testing"

	"github.com/anucarts/marketplace-backend/pkg/db/dbtest"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfile(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	seller, err := repo.Create(ctx, CreateSellerDTO{Name: "Sam", CompanyName: "Sam's Goods", Email: "Sam@Shop.test", PasswordHash: "h"})
	require.NoError(t, err)

	svc, err := NewService(repo)
	require.NoError(t, err)

	profile, err := svc.GetProfile(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam's Goods", profile.CompanyName)
	assert.Equal(t, "sam@shop.test", profile.Email)

	_, err = svc.GetProfile(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNewServiceRequiresRepo(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}
