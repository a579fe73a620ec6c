package businessmodel

import (
	"fmt"
	"slices"
)

// ValidatePricing checks an edit buffer before it is submitted as a new
// version and returns one human-readable message per problem. The dev API
// runs the same checks on the server side.
func ValidatePricing(e EditPlanData) []string {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if e.Name == "" {
		add("plan name is required")
	}
	if e.PlanType != PlanTypePerUser && e.PlanType != PlanTypePerProduct {
		add("plan type %q is not supported", e.PlanType)
	}
	if e.TrialDuration < 0 {
		add("trial duration cannot be negative")
	}
	if len(e.SupportedCurrencies) == 0 {
		add("at least one supported currency is required")
	} else if e.DefaultCurrencyCode != "" && !slices.Contains(e.SupportedCurrencies, e.DefaultCurrencyCode) {
		add("default currency %s is not a supported currency", e.DefaultCurrencyCode)
	}

	if len(e.Tiers) == 0 {
		add("at least one pricing tier is required")
	}
	for i, t := range e.Tiers {
		n := i + 1
		if t.MinValue < 0 {
			add("tier %d minimum cannot be negative", n)
		}
		if t.MaxValue != nil && *t.MaxValue < t.MinValue {
			add("tier %d maximum is below its minimum", n)
		}
		if t.MaxValue == nil && i != len(e.Tiers)-1 {
			add("tier %d is unbounded but is not the last tier", n)
		}
		if i > 0 {
			prev := e.Tiers[i-1]
			if prev.MaxValue != nil && t.MinValue <= *prev.MaxValue {
				add("tier %d overlaps tier %d", n, i)
			}
		}
		for _, c := range MissingCurrencies(t.Prices, e.SupportedCurrencies) {
			add("tier %d missing %s price", n, c)
		}
		for _, c := range e.SupportedCurrencies {
			if t.Prices[c] < 0 {
				add("tier %d has a negative %s price", n, c)
			}
		}
	}

	for _, f := range e.Features {
		name := f.Name
		if name == "" {
			name = f.ID
		}
		if f.Limit < 0 || f.TrialLimit < 0 {
			add("feature %s invalid: limits cannot be negative", name)
		}
		if f.TrialEnabled && f.TrialLimit == 0 && f.Limit > 0 {
			add("feature %s invalid: trial is enabled without a trial limit", name)
		}
		if !f.IsSpecial {
			continue
		}
		for _, c := range MissingCurrencies(f.Prices, e.SupportedCurrencies) {
			add("feature %s missing %s price", name, c)
		}
	}

	for _, nt := range e.Notifications {
		if nt.CreditsPerUnit < 0 {
			add("notification %s invalid: credits cannot be negative", nt.Method)
		}
		for _, c := range MissingCurrencies(nt.Prices, e.SupportedCurrencies) {
			add("notification %s missing %s price", nt.Method, c)
		}
	}

	return issues
}

// Quote prices quantity units of p in q.Currency using the tier the
// quantity falls in. The unit price comes from the tier's per-currency
// prices, falling back to UnitPrice for the plan's default currency.
func Quote(p Plan, q PriceQuery) (PriceQuote, error) {
	if q.Quantity <= 0 {
		return PriceQuote{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidPlan)
	}
	currency := q.Currency
	if currency == "" {
		currency = p.DefaultCurrencyCode
	}
	if len(p.SupportedCurrencies) > 0 && !slices.Contains(p.SupportedCurrencies, currency) {
		return PriceQuote{}, fmt.Errorf("%w: currency %s is not supported by plan %s", ErrInvalidPlan, currency, p.ID)
	}

	tiers := p.Tiers
	if len(tiers) == 0 && p.ActiveVersion != nil {
		tiers = p.ActiveVersion.Tiers
	}
	for _, t := range tiers {
		if q.Quantity < t.MinValue || (t.MaxValue != nil && q.Quantity > *t.MaxValue) {
			continue
		}
		unit := t.Prices[currency]
		if unit == 0 && t.UnitPrice != 0 && currency == p.DefaultCurrencyCode {
			unit = t.UnitPrice
		}
		label := t.Label
		if label == "" {
			label = tierRange(t)
		}
		return PriceQuote{
			PlanID:    p.ID,
			Currency:  currency,
			Quantity:  q.Quantity,
			TierLabel: label,
			BasePrice: t.BasePrice,
			UnitPrice: unit,
			Total:     t.BasePrice + unit*float64(q.Quantity),
		}, nil
	}
	return PriceQuote{}, fmt.Errorf("%w: no tier covers quantity %d", ErrInvalidPlan, q.Quantity)
}

func tierRange(t Tier) string {
	if t.MaxValue == nil {
		return fmt.Sprintf("%d+", t.MinValue)
	}
	return fmt.Sprintf("%d-%d", t.MinValue, *t.MaxValue)
}
