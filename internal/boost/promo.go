package boost

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/hotel/internal/billing"
	"github.com/avstrong/hotel/internal/domain"
)

var hundred = decimal.NewFromInt(100) //nolint:gochecknoglobals

type storage interface {
	GetPromo(ctx context.Context, code string) (*domain.Promo, error)
}

type Manager struct {
	storage storage
}

func New(storage storage) *Manager {
	return &Manager{storage: storage}
}

// PromoCode takes a percentage off the subtotal while it is valid.
type PromoCode struct {
	Code         string
	Percentage   decimal.Decimal
	ValidThrough time.Time
}

func (p *PromoCode) Discount(subtotal decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	if at.After(p.ValidThrough) {
		return decimal.Zero, domain.InvalidInputf("promo_code", "%s expired on %s", p.Code, p.ValidThrough.Format(time.DateOnly))
	}

	return subtotal.Mul(p.Percentage).Div(hundred).Round(2), nil
}

// Strategies resolves promo codes into discount strategies. Blank codes are skipped.
func (m *Manager) Strategies(ctx context.Context, codes ...string) ([]billing.DiscountStrategy, error) {
	strategies := make([]billing.DiscountStrategy, 0, len(codes))

	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}

		promo, err := m.storage.GetPromo(ctx, code)
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.NotFound("promo code", code)
		}

		if err != nil {
			return nil, fmt.Errorf("get promo %s from storage: %w", code, err)
		}

		strategies = append(strategies, &PromoCode{
			Code:         promo.Code,
			Percentage:   promo.Percentage,
			ValidThrough: promo.ValidThrough,
		})
	}

	return strategies, nil
}
