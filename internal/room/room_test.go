package room_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/idgen/simple"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/room"
	"github.com/avstrong/hotel/internal/storage/memory"
)

func newManager() *room.Manager {
	l := logger.NewNop()

	return room.New(l, memory.New(memory.Config{L: l}), simple.New())
}

func createInput(code string) *room.CreateInput {
	return &room.CreateInput{
		Code:        code,
		Category:    "double",
		NightlyRate: decimal.RequireFromString("50.00"),
		Capacity:    2,
		Features:    "sea view",
	}
}

func Test_Manager_Create(t *testing.T) {
	// arrange
	m := newManager()
	ctx := context.Background()

	// act
	r, err := m.Create(ctx, createInput("101"))

	// assert
	require.NoError(t, err)
	assert.Equal(t, domain.RoomAvailable, r.State)
	assert.True(t, r.Active)

	got, err := m.GetByCode(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}

func Test_Manager_Create_DuplicateCodeConflicts(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	_, err := m.Create(ctx, createInput("101"))
	require.NoError(t, err)

	_, err = m.Create(ctx, createInput(" 101 "))

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func Test_Manager_Create_ValidatesInput(t *testing.T) {
	_, err := newManager().Create(context.Background(), &room.CreateInput{NightlyRate: decimal.Zero}) //nolint:exhaustruct

	inputErr := domain.IsInputError(err)
	require.NotNil(t, inputErr)
	assert.Equal(t, 4, inputErr.FieldsCount())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func Test_Manager_Update_AppliesOnlyProvidedFields(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	r, err := m.Create(ctx, createInput("101"))
	require.NoError(t, err)

	rate := decimal.RequireFromString("80")
	inactive := false

	//nolint:exhaustruct
	updated, err := m.Update(ctx, r.ID, &room.Update{NightlyRate: &rate, Active: &inactive})

	require.NoError(t, err)
	assert.True(t, rate.Equal(updated.NightlyRate))
	assert.False(t, updated.Active)
	assert.Equal(t, "double", updated.Category)
	assert.Equal(t, 2, updated.Capacity)
}

func Test_Manager_Get_UnknownIsNotFound(t *testing.T) {
	_, err := newManager().Get(context.Background(), 404)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func Test_Manager_Maintenance(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	r, err := m.Create(ctx, createInput("101"))
	require.NoError(t, err)

	r, err = m.StartMaintenance(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomMaintenance, r.State)

	_, err = m.StartMaintenance(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	r, err = m.EndMaintenance(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomAvailable, r.State)
}

func Test_Manager_List_FiltersByCategory(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	_, err := m.Create(ctx, createInput("101"))
	require.NoError(t, err)

	suite := createInput("201")
	suite.Category = "suite"
	_, err = m.Create(ctx, suite)
	require.NoError(t, err)

	rooms, err := m.List(ctx, domain.RoomFilter{Category: "suite"}) //nolint:exhaustruct

	require.NoError(t, err)

	if assert.Len(t, rooms, 1) {
		assert.Equal(t, "201", rooms[0].Code)
	}
}
