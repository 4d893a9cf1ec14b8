package boost_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/hotel/internal/boost"
	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/storage/memory"
)

var now = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func Test_PromoCode_Discount(t *testing.T) {
	p := &boost.PromoCode{Code: "SPRING", Percentage: decimal.NewFromInt(35), ValidThrough: now.AddDate(0, 0, 1)}

	d, err := p.Discount(decimal.RequireFromString("150.00"), now)

	require.NoError(t, err)
	assert.Equal(t, "52.5", d.String())

	_, err = p.Discount(decimal.RequireFromString("150.00"), now.AddDate(0, 0, 2))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func Test_Manager_Strategies(t *testing.T) {
	// arrange
	db := memory.New(memory.Config{L: logger.NewNop()})
	ctx := context.Background()

	trxCtx, err := db.BeginTransaction(ctx, "")
	require.NoError(t, err)
	require.NoError(t, db.SavePromo(trxCtx, &domain.Promo{Code: "SPRING", Percentage: decimal.NewFromInt(10), ValidThrough: now}))
	require.NoError(t, db.CommitTransaction(trxCtx))

	m := boost.New(db)

	// act
	strategies, err := m.Strategies(ctx, " spring ", "")

	// assert
	require.NoError(t, err)
	assert.Len(t, strategies, 1)

	_, err = m.Strategies(ctx, "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
