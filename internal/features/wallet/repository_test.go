package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/testutil"
)

func TestRepository_InsertTransactionOncePerReference(t *testing.T) {
	db := testutil.Postgres(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	require.NoError(t, repo.EnsureAccount(ctx, userID))
	require.NoError(t, repo.EnsureAccount(ctx, userID))

	refType, refID := "user_product_listing", uuid.NewString()
	entry := func() *Transaction {
		return &Transaction{
			ID: uuid.NewString(), UserID: userID, AmountCents: 4395,
			Direction: DirectionCredit, Status: StatusAvailable, Kind: KindCommunitySaleCredit,
			ReferenceType: &refType, ReferenceID: &refID, Metadata: map[string]any{},
		}
	}

	first := entry()
	inserted, err := repo.InsertTransaction(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.False(t, first.CreatedAt.IsZero())

	inserted, err = repo.InsertTransaction(ctx, entry())
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, err := repo.FindByReference(ctx, KindCommunitySaleCredit, refType, refID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, first.ID, stored.ID)
}

func TestRepository_ApplyDeltaRejectsOverdraft(t *testing.T) {
	db := testutil.Postgres(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	require.NoError(t, repo.EnsureAccount(ctx, userID))

	_, err := repo.ApplyDelta(ctx, userID, Delta{BalanceCents: 500, TotalEarnedCents: 500})
	require.NoError(t, err)

	_, err = repo.ApplyDelta(ctx, userID, Delta{BalanceCents: -600})
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	account, err := repo.GetAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.BalanceCents)
}
