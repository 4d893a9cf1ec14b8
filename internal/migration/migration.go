// Package migration seeds a fresh store with the chart of accounts and, on request, demo data.
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/room"
	"github.com/avstrong/hotel/internal/txn"
)

type storage interface {
	txn.Storage
	SavePromo(ctx context.Context, promo *domain.Promo) error
}

type accounts interface {
	GetAccountByCode(ctx context.Context, code string) (*domain.Account, error)
	CreateAccount(ctx context.Context, input *ledger.AccountInput) (*domain.Account, error)
}

type rooms interface {
	GetByCode(ctx context.Context, code string) (*domain.Room, error)
	Create(ctx context.Context, input *room.CreateInput) (*domain.Room, error)
}

type Deps struct {
	Storage  storage
	Accounts accounts
	Rooms    rooms
}

type seedAccount struct {
	code       string
	name       string
	typ        domain.AccountType
	parentCode string
}

// chart is ordered parents first.
var chart = []seedAccount{
	{code: "1", name: "Activos", typ: domain.AccountAsset},
	{code: "1.1.01", name: "Caja", typ: domain.AccountAsset, parentCode: "1"},
	{code: "1.1.02", name: "Bancos", typ: domain.AccountAsset, parentCode: "1"},
	{code: "2", name: "Pasivos", typ: domain.AccountLiability},
	{code: "2.1.01", name: "Impuestos por Pagar", typ: domain.AccountLiability, parentCode: "2"},
	{code: "4", name: "Ingresos", typ: domain.AccountIncome},
	{code: ledger.DefaultRevenueAccountCode, name: ledger.DefaultRevenueAccountName, typ: domain.AccountIncome, parentCode: "4"},
	{code: "5", name: "Gastos", typ: domain.AccountExpense},
	{code: "5.1.01", name: "Mantenimiento", typ: domain.AccountExpense, parentCode: "5"},
}

func demoRooms() []*room.CreateInput {
	return []*room.CreateInput{
		{Code: "101", Category: "single", NightlyRate: decimal.RequireFromString("50.00"), Capacity: 1, Features: "wifi"},
		{Code: "102", Category: "double", NightlyRate: decimal.RequireFromString("80.00"), Capacity: 2, Features: "wifi, balcony"},
		{Code: "201", Category: "suite", NightlyRate: decimal.RequireFromString("150.00"), Capacity: 4, Features: "wifi, jacuzzi"},
	}
}

func demoPromos(now time.Time) []*domain.Promo {
	return []*domain.Promo{
		{Code: "WELCOME10", Percentage: decimal.NewFromInt(10), ValidThrough: now.AddDate(1, 0, 0)},
		{Code: "SUMMER20", Percentage: decimal.NewFromInt(20), ValidThrough: now.AddDate(0, 6, 0)},
	}
}

// Up seeds in one transaction. Records that already exist are left as they are, so Up can run
// on every start.
func Up(ctx context.Context, l *logger.Logger, deps Deps, withDemoData bool) error {
	err := txn.Run(ctx, l, deps.Storage, "migration.Up", func(ctx context.Context) error {
		if err := seedChart(ctx, deps.Accounts); err != nil {
			return err
		}

		if !withDemoData {
			return nil
		}

		if err := seedRooms(ctx, deps.Rooms); err != nil {
			return err
		}

		for _, promo := range demoPromos(time.Now().UTC()) {
			if err := deps.Storage.SavePromo(ctx, promo); err != nil {
				return fmt.Errorf("save promo %s to storage: %w", promo.Code, err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	l.LogInfo("Migration has been applied, demo data: %v", withDemoData)

	return nil
}

func seedChart(ctx context.Context, accounts accounts) error {
	ids := make(map[string]int64, len(chart))

	for _, seed := range chart {
		existing, err := accounts.GetAccountByCode(ctx, seed.code)
		if err == nil {
			ids[seed.code] = existing.ID

			continue
		}

		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get account %s: %w", seed.code, err)
		}

		input := &ledger.AccountInput{
			Code:        seed.code,
			Name:        seed.name,
			Description: "",
			Type:        seed.typ,
			ParentID:    nil,
		}

		if seed.parentCode != "" {
			parentID := ids[seed.parentCode]
			input.ParentID = &parentID
		}

		account, err := accounts.CreateAccount(ctx, input)
		if err != nil {
			return fmt.Errorf("create account %s: %w", seed.code, err)
		}

		ids[seed.code] = account.ID
	}

	return nil
}

func seedRooms(ctx context.Context, rooms rooms) error {
	for _, input := range demoRooms() {
		_, err := rooms.GetByCode(ctx, input.Code)
		if err == nil {
			continue
		}

		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get room %s: %w", input.Code, err)
		}

		if _, err = rooms.Create(ctx, input); err != nil {
			return fmt.Errorf("create room %s: %w", input.Code, err)
		}
	}

	return nil
}
