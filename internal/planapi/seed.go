package planapi

import (
	"context"
	"fmt"
	"time"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/idgen"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// Seed stores plans under scope, each with an active version 1.0 built
// from its pricing lists.
func Seed(ctx context.Context, store Store, scope tenant.Context, plans ...businessmodel.Plan) error {
	now := time.Now().UTC()
	for _, p := range plans {
		p = p.Clone()
		if p.ID == "" {
			p.ID = idgen.WithPrefix("plan_")
		}
		p.TenantID = scope.TenantID
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		p.RepairCurrencies()
		if err := store.Create(ctx, scope, &p); err != nil {
			return fmt.Errorf("seed plan %s: %w", p.Name, err)
		}
		v := businessmodel.Version{
			ID:            idgen.WithPrefix("ver_"),
			VersionNumber: "1.0",
			EffectiveDate: p.CreatedAt,
			Changelog:     "Initial version",
			CreatedAt:     p.CreatedAt,
			Tiers:         p.Tiers,
			Features:      p.Features,
			Notifications: p.Notifications,
		}
		if err := store.AddVersion(ctx, scope, p.ID, v); err != nil {
			return fmt.Errorf("seed version of %s: %w", p.Name, err)
		}
	}
	return nil
}

func bound(n int) *int { return &n }

// DemoPlans is a small catalogue for local development.
func DemoPlans() []businessmodel.Plan {
	currencies := []string{"INR", "USD"}
	return []businessmodel.Plan{
		{
			Name:                "Starter",
			Description:         "For small teams getting started",
			PlanType:            businessmodel.PlanTypePerUser,
			TrialDuration:       14,
			IsActive:            true,
			IsVisible:           true,
			DefaultCurrencyCode: "INR",
			SupportedCurrencies: currencies,
			Tiers: []businessmodel.Tier{
				{Label: "1-10 users", MinValue: 1, MaxValue: bound(10), UnitPrice: 499, Prices: businessmodel.Prices{"INR": 499, "USD": 6}},
				{Label: "11+ users", MinValue: 11, UnitPrice: 399, Prices: businessmodel.Prices{"INR": 399, "USD": 5}},
			},
			Features: []businessmodel.Feature{
				{ID: "contracts", Name: "Contracts", Enabled: true, Limit: 50, TrialEnabled: true, TrialLimit: 5},
			},
			Notifications: []businessmodel.Notification{
				{Method: "email", Category: "contract", Enabled: true, CreditsPerUnit: 1, Prices: businessmodel.Prices{"INR": 0.5, "USD": 0.01}},
			},
		},
		{
			Name:                "Catalogue",
			Description:         "Priced by number of products",
			PlanType:            businessmodel.PlanTypePerProduct,
			IsActive:            true,
			IsVisible:           false,
			DefaultCurrencyCode: "USD",
			SupportedCurrencies: currencies,
			Tiers: []businessmodel.Tier{
				{Label: "Up to 100 products", MinValue: 0, MaxValue: bound(100), BasePrice: 20, Prices: businessmodel.Prices{"INR": 1, "USD": 0.02}},
				{Label: "Over 100 products", MinValue: 101, BasePrice: 40, Prices: businessmodel.Prices{"INR": 0.5, "USD": 0.01}},
			},
			Features: []businessmodel.Feature{
				{ID: "api_access", Name: "API access", Enabled: true, IsSpecial: true, PricingPeriod: "monthly", Prices: businessmodel.Prices{"INR": 999, "USD": 12}},
			},
		},
	}
}
