package businessmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func validEdit() EditPlanData {
	return EditPlanData{
		PlanID:              "p1",
		Name:                "Growth",
		PlanType:            PlanTypePerUser,
		DefaultCurrencyCode: "INR",
		SupportedCurrencies: []string{"INR", "USD"},
		Tiers: []Tier{
			{MinValue: 1, MaxValue: intPtr(10), BasePrice: 0, Prices: Prices{"INR": 100, "USD": 2}},
			{MinValue: 11, Prices: Prices{"INR": 80, "USD": 1.5}},
		},
		Features: []Feature{
			{ID: "contracts", Name: "Contracts", Enabled: true, Limit: 100},
		},
		Notifications: []Notification{
			{Method: "email", Enabled: true, CreditsPerUnit: 1, Prices: Prices{"INR": 0.1, "USD": 0.01}},
		},
		CurrentVersionNumber: "1.0",
		NextVersionNumber:    "1.1",
	}
}

func TestValidatePricing_Valid(t *testing.T) {
	assert.Empty(t, ValidatePricing(validEdit()))
}

func TestValidatePricing_Problems(t *testing.T) {
	e := validEdit()
	e.Tiers[1].MinValue = 5
	delete(e.Tiers[1].Prices, "INR")
	e.Features = append(e.Features, Feature{ID: "x", Name: "X", IsSpecial: true, Limit: -1, Prices: Prices{"INR": 1, "USD": 1}})

	issues := ValidatePricing(e)
	assert.Contains(t, issues, "tier 2 overlaps tier 1")
	assert.Contains(t, issues, "tier 2 missing INR price")
	assert.Contains(t, issues, "feature X invalid: limits cannot be negative")
}

func TestValidatePricing_Plan(t *testing.T) {
	e := validEdit()
	e.Name = ""
	e.PlanType = "Per Seat"
	e.DefaultCurrencyCode = "EUR"
	e.Tiers[0].MaxValue = nil

	issues := ValidatePricing(e)
	assert.Contains(t, issues, "plan name is required")
	assert.Contains(t, issues, `plan type "Per Seat" is not supported`)
	assert.Contains(t, issues, "default currency EUR is not a supported currency")
	assert.Contains(t, issues, "tier 1 is unbounded but is not the last tier")
}

func TestQuote(t *testing.T) {
	e := validEdit()
	p := Plan{
		ID:                  "p1",
		DefaultCurrencyCode: e.DefaultCurrencyCode,
		SupportedCurrencies: e.SupportedCurrencies,
		Tiers:               e.Tiers,
	}

	q, err := Quote(p, PriceQuery{Quantity: 5, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, q.Total)
	assert.Equal(t, "1-10", q.TierLabel)

	q, err = Quote(p, PriceQuery{Quantity: 20})
	require.NoError(t, err)
	assert.Equal(t, "INR", q.Currency)
	assert.Equal(t, 1600.0, q.Total)

	_, err = Quote(p, PriceQuery{Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = Quote(p, PriceQuery{Quantity: 1, Currency: "EUR"})
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestQuote_UnitPriceFallback(t *testing.T) {
	p, ok := DecodePlan(raw(`{
		"id": "p1",
		"default_currency_code": "INR",
		"supported_currencies": ["INR", "USD"],
		"tiers": [{"min_value": 1, "base_price": 50, "unit_price": 10}]
	}`))
	require.True(t, ok)
	require.Contains(t, p.Tiers[0].Prices, "INR", "decoding fills every supported currency")

	q, err := Quote(p, PriceQuery{Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 10.0, q.UnitPrice)
	assert.Equal(t, 80.0, q.Total)

	q, err = Quote(p, PriceQuery{Quantity: 3, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, q.Total, "only the default currency falls back")
}

func TestNextVersionNumber(t *testing.T) {
	assert.Equal(t, "1.1", NextVersionNumber("1.0"))
	assert.Equal(t, "2.10", NextVersionNumber("2.9"))
	assert.Equal(t, "3.1", NextVersionNumber("3"))
	assert.Equal(t, "1.1", NextVersionNumber("beta"))
	assert.Equal(t, "1.1", NextVersionNumber(""))
}

func TestFilters(t *testing.T) {
	p := Plan{Name: "Growth", PlanType: PlanTypePerUser, IsVisible: true}

	assert.True(t, Filters{}.Match(p))
	assert.True(t, Filters{Search: "grow"}.Match(p))
	assert.False(t, Filters{PlanType: PlanTypePerProduct}.Match(p))

	p.IsArchived = true
	assert.False(t, Filters{}.Match(p))
	assert.True(t, Filters{IncludeArchived: true}.Match(p))

	q := Filters{PlanType: PlanTypePerUser, VisibleOnly: true}.Query()
	assert.Equal(t, "Per User", q.Get("plan_type"))
	assert.Equal(t, "true", q.Get("visible_only"))
}
