package businessmodel

// The edit form assumes every priced line has an amount for every
// supported currency. Missing amounts are repaired to zero, never
// reported as errors.

// FillPrices returns prices with a zero entry added for each currency it lacks.
// Existing amounts are kept, including ones for currencies no longer supported.
func FillPrices(prices Prices, currencies []string) Prices {
	if len(currencies) == 0 {
		return prices
	}
	if prices == nil {
		prices = make(Prices, len(currencies))
	}
	for _, c := range currencies {
		if _, ok := prices[c]; !ok {
			prices[c] = 0
		}
	}
	return prices
}

func repairLines(currencies []string, tiers []Tier, features []Feature, notifications []Notification) {
	for i := range tiers {
		tiers[i].Prices = FillPrices(tiers[i].Prices, currencies)
	}
	for i := range features {
		if features[i].IsSpecial {
			features[i].Prices = FillPrices(features[i].Prices, currencies)
		}
	}
	for i := range notifications {
		notifications[i].Prices = FillPrices(notifications[i].Prices, currencies)
	}
}

// RepairCurrencies fills missing per-currency prices on every tier,
// special feature and notification, including the active version's.
func (p *Plan) RepairCurrencies() {
	repairLines(p.SupportedCurrencies, p.Tiers, p.Features, p.Notifications)
	if p.ActiveVersion != nil {
		repairLines(p.SupportedCurrencies, p.ActiveVersion.Tiers, p.ActiveVersion.Features, p.ActiveVersion.Notifications)
	}
}

// RepairCurrencies fills missing per-currency prices on every tier,
// special feature and notification of the edit buffer.
func (e *EditPlanData) RepairCurrencies() {
	repairLines(e.SupportedCurrencies, e.Tiers, e.Features, e.Notifications)
}

// MissingCurrencies lists the supported currencies prices has no entry for.
func MissingCurrencies(prices Prices, currencies []string) []string {
	var missing []string
	for _, c := range currencies {
		if _, ok := prices[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
