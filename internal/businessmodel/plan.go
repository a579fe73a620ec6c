// Package businessmodel is the client-side store for pricing plans: it
// fetches plans from the business-model API, normalizes the two field
// spellings the API has used over time into one canonical shape, caches
// responses with a TTL, coalesces duplicate in-flight loads, and keeps a
// local list and selection consistent across mutations.
package businessmodel

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// PlanType is how a plan is metered.
type PlanType string

const (
	PlanTypePerUser    PlanType = "Per User"
	PlanTypePerProduct PlanType = "Per Product"
)

// Prices maps an ISO currency code to an amount.
type Prices map[string]float64

// Tier is a usage breakpoint. MaxValue nil means unbounded.
type Tier struct {
	ID        string  `json:"tier_id,omitempty"`
	Label     string  `json:"label,omitempty"`
	MinValue  int     `json:"min_value"`
	MaxValue  *int    `json:"max_value"`
	BasePrice float64 `json:"base_price"`
	UnitPrice float64 `json:"unit_price"`
	Prices    Prices  `json:"prices"`
}

// Feature is a toggleable plan capability. Special features are priced
// separately and carry per-currency prices.
type Feature struct {
	ID            string `json:"feature_id"`
	Name          string `json:"name,omitempty"`
	Enabled       bool   `json:"enabled"`
	Limit         int    `json:"limit"`
	TrialEnabled  bool   `json:"trial_enabled"`
	TrialLimit    int    `json:"trial_limit"`
	PricingPeriod string `json:"pricing_period,omitempty"`
	IsSpecial     bool   `json:"is_special_feature"`
	Prices        Prices `json:"prices,omitempty"`
}

// Notification is a billable notification channel.
type Notification struct {
	Method         string `json:"notif_type"`
	Category       string `json:"category,omitempty"`
	Enabled        bool   `json:"enabled"`
	CreditsPerUnit int    `json:"credits_per_unit"`
	Prices         Prices `json:"prices"`
}

// Version is one immutable revision of a plan's pricing. Editing a plan
// drafts a successor version; exactly one version per plan is active.
type Version struct {
	ID            string         `json:"version_id"`
	PlanID        string         `json:"plan_id,omitempty"`
	VersionNumber string         `json:"version_number"`
	IsActive      bool           `json:"is_active"`
	EffectiveDate time.Time      `json:"effective_date,omitzero"`
	Changelog     string         `json:"changelog,omitempty"`
	CreatedBy     string         `json:"created_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at,omitzero"`
	Tiers         []Tier         `json:"tiers,omitempty"`
	Features      []Feature      `json:"features,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
}

// Plan is the canonical pricing plan. The JSON tags are the snake_case
// form sent to the API and stored in the cache.
type Plan struct {
	ID                  string         `json:"id"`
	TenantID            string         `json:"tenant_id,omitempty"`
	Name                string         `json:"name"`
	Description         string         `json:"description,omitempty"`
	PlanType            PlanType       `json:"plan_type"`
	TrialDuration       int            `json:"trial_duration"`
	IsActive            bool           `json:"is_active"`
	IsVisible           bool           `json:"is_visible"`
	IsArchived          bool           `json:"is_archived"`
	DefaultCurrencyCode string         `json:"default_currency_code"`
	SupportedCurrencies []string       `json:"supported_currencies"`
	SubscriberCount     int            `json:"subscriber_count"`
	ActiveVersion       *Version       `json:"active_version,omitempty"`
	Tiers               []Tier         `json:"tiers"`
	Features            []Feature      `json:"features"`
	Notifications       []Notification `json:"notifications"`
	CreatedAt           time.Time      `json:"created_at,omitzero"`
	UpdatedAt           time.Time      `json:"updated_at,omitzero"`
}

// EditPlanData is the flattened form of a plan while a new version of it
// is being drafted.
type EditPlanData struct {
	PlanID               string         `json:"plan_id"`
	Name                 string         `json:"name"`
	Description          string         `json:"description,omitempty"`
	PlanType             PlanType       `json:"plan_type"`
	TrialDuration        int            `json:"trial_duration"`
	IsVisible            bool           `json:"is_visible"`
	DefaultCurrencyCode  string         `json:"default_currency_code"`
	SupportedCurrencies  []string       `json:"supported_currencies"`
	Tiers                []Tier         `json:"tiers"`
	Features             []Feature      `json:"features"`
	Notifications        []Notification `json:"notifications"`
	CurrentVersionNumber string         `json:"current_version_number"`
	NextVersionNumber    string         `json:"next_version_number"`
	Changelog            string         `json:"changelog,omitempty"`
	EffectiveDate        time.Time      `json:"effective_date,omitzero"`
}

// Filters narrows a plan list. The zero value lists every non-archived plan.
type Filters struct {
	PlanType        PlanType
	IncludeArchived bool
	VisibleOnly     bool
	Search          string
}

// Query encodes the filters as URL query parameters.
func (f Filters) Query() url.Values {
	q := url.Values{}
	if f.PlanType != "" {
		q.Set("plan_type", string(f.PlanType))
	}
	if f.IncludeArchived {
		q.Set("include_archived", "true")
	}
	if f.VisibleOnly {
		q.Set("visible_only", "true")
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

// Match reports whether p passes the filters.
func (f Filters) Match(p Plan) bool {
	if p.IsArchived && !f.IncludeArchived {
		return false
	}
	if f.VisibleOnly && !p.IsVisible {
		return false
	}
	if f.PlanType != "" && p.PlanType != f.PlanType {
		return false
	}
	if f.Search != "" && !containsFold(p.Name, f.Search) && !containsFold(p.Description, f.Search) {
		return false
	}
	return true
}

// PriceQuery asks what a plan costs for a quantity (users or products) in a currency.
type PriceQuery struct {
	Quantity int    `json:"quantity"`
	Currency string `json:"currency"`
}

// PriceQuote is the result of a price calculation.
type PriceQuote struct {
	PlanID    string  `json:"plan_id"`
	Currency  string  `json:"currency"`
	Quantity  int     `json:"quantity"`
	TierLabel string  `json:"tier_label"`
	BasePrice float64 `json:"base_price"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// Clone returns a deep copy.
func (p Plan) Clone() Plan {
	out := p
	out.SupportedCurrencies = slices.Clone(p.SupportedCurrencies)
	out.Tiers = cloneTiers(p.Tiers)
	out.Features = cloneFeatures(p.Features)
	out.Notifications = cloneNotifications(p.Notifications)
	if p.ActiveVersion != nil {
		v := p.ActiveVersion.Clone()
		out.ActiveVersion = &v
	}
	return out
}

// Clone returns a deep copy.
func (v Version) Clone() Version {
	out := v
	out.Tiers = cloneTiers(v.Tiers)
	out.Features = cloneFeatures(v.Features)
	out.Notifications = cloneNotifications(v.Notifications)
	return out
}

// Clone returns a deep copy.
func (e EditPlanData) Clone() EditPlanData {
	out := e
	out.SupportedCurrencies = slices.Clone(e.SupportedCurrencies)
	out.Tiers = cloneTiers(e.Tiers)
	out.Features = cloneFeatures(e.Features)
	out.Notifications = cloneNotifications(e.Notifications)
	return out
}

// EditData projects the plan into an edit buffer for its next version.
func (p Plan) EditData() EditPlanData {
	current := "1.0"
	if p.ActiveVersion != nil && p.ActiveVersion.VersionNumber != "" {
		current = p.ActiveVersion.VersionNumber
	}
	c := p.Clone()
	return EditPlanData{
		PlanID:               c.ID,
		Name:                 c.Name,
		Description:          c.Description,
		PlanType:             c.PlanType,
		TrialDuration:        c.TrialDuration,
		IsVisible:            c.IsVisible,
		DefaultCurrencyCode:  c.DefaultCurrencyCode,
		SupportedCurrencies:  c.SupportedCurrencies,
		Tiers:                c.Tiers,
		Features:             c.Features,
		Notifications:        c.Notifications,
		CurrentVersionNumber: current,
		NextVersionNumber:    NextVersionNumber(current),
	}
}

// NextVersionNumber bumps the minor part of a "major.minor" version.
// Anything unparseable restarts at "1.1".
func NextVersionNumber(current string) string {
	major, minor, ok := splitVersion(current)
	if !ok {
		return "1.1"
	}
	return strconv.Itoa(major) + "." + strconv.Itoa(minor+1)
}

func splitVersion(v string) (int, int, bool) {
	for i := 0; i < len(v); i++ {
		if v[i] == '.' {
			major, err1 := strconv.Atoi(v[:i])
			minor, err2 := strconv.Atoi(v[i+1:])
			if err1 != nil || err2 != nil {
				return 0, 0, false
			}
			return major, minor, true
		}
	}
	major, err := strconv.Atoi(v)
	if err != nil {
		return 0, 0, false
	}
	return major, 0, true
}

func cloneTiers(in []Tier) []Tier {
	if in == nil {
		return nil
	}
	out := make([]Tier, len(in))
	for i, t := range in {
		out[i] = t
		if t.MaxValue != nil {
			m := *t.MaxValue
			out[i].MaxValue = &m
		}
		out[i].Prices = maps.Clone(t.Prices)
	}
	return out
}

func cloneFeatures(in []Feature) []Feature {
	if in == nil {
		return nil
	}
	out := make([]Feature, len(in))
	for i, f := range in {
		out[i] = f
		out[i].Prices = maps.Clone(f.Prices)
	}
	return out
}

func cloneNotifications(in []Notification) []Notification {
	if in == nil {
		return nil
	}
	out := make([]Notification, len(in))
	for i, n := range in {
		out[i] = n
		out[i].Prices = maps.Clone(n.Prices)
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
