package businessmodel

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// The API has returned plans in camelCase and snake_case, sometimes mixed
// within one response, and has nested tiers/features/notifications either
// on the plan or under its active version. Decoding tries each spelling in
// order (camelCase first) and settles on the canonical types in plan.go.

// rawObject is a JSON object with its values left undecoded.
type rawObject map[string]json.RawMessage

func parseObject(data []byte) (rawObject, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var o rawObject
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, false
	}
	return o, true
}

func parseArray(data []byte) ([]json.RawMessage, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, false
	}
	var a []json.RawMessage
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, false
	}
	return a, true
}

// lookup returns the first key whose value is present and not null.
func (o rawObject) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := o[k]
		if !ok {
			continue
		}
		if t := bytes.TrimSpace(v); len(t) == 0 || bytes.Equal(t, []byte("null")) {
			continue
		}
		return v, true
	}
	return nil, false
}

func (o rawObject) str(keys ...string) string {
	v, ok := o.lookup(keys...)
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	// ids occasionally arrive as numbers
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		return n.String()
	}
	return ""
}

func (o rawObject) boolean(keys ...string) bool {
	v, ok := o.lookup(keys...)
	if !ok {
		return false
	}
	var b bool
	if json.Unmarshal(v, &b) == nil {
		return b
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		b, _ = strconv.ParseBool(s)
	}
	return b
}

func (o rawObject) number(keys ...string) (float64, bool) {
	v, ok := o.lookup(keys...)
	if !ok {
		return 0, false
	}
	return decodeNumber(v)
}

func (o rawObject) float(keys ...string) float64 {
	f, _ := o.number(keys...)
	return f
}

func (o rawObject) integer(keys ...string) int {
	f, _ := o.number(keys...)
	return int(f)
}

func (o rawObject) optInt(keys ...string) *int {
	f, ok := o.number(keys...)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func (o rawObject) strings(keys ...string) []string {
	v, ok := o.lookup(keys...)
	if !ok {
		return nil
	}
	var out []string
	if json.Unmarshal(v, &out) != nil {
		return nil
	}
	return out
}

func (o rawObject) timestamp(keys ...string) time.Time {
	s := o.str(keys...)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (o rawObject) object(keys ...string) rawObject {
	v, ok := o.lookup(keys...)
	if !ok {
		return nil
	}
	obj, _ := parseObject(v)
	return obj
}

// objects returns the array under the first present key. ok is true for a
// present empty array, so an explicit [] is not replaced by a fallback.
func (o rawObject) objects(keys ...string) ([]rawObject, bool) {
	v, ok := o.lookup(keys...)
	if !ok {
		return nil, false
	}
	items, ok := parseArray(v)
	if !ok {
		return nil, false
	}
	out := make([]rawObject, 0, len(items))
	for _, it := range items {
		if obj, ok := parseObject(it); ok {
			out = append(out, obj)
		}
	}
	return out, true
}

func (o rawObject) prices(keys ...string) Prices {
	v, ok := o.lookup(keys...)
	if !ok {
		return nil
	}
	raw, ok := parseObject(v)
	if !ok {
		return nil
	}
	out := make(Prices, len(raw))
	for cur, amount := range raw {
		if f, ok := decodeNumber(amount); ok {
			out[cur] = f
		}
	}
	return out
}

func decodeNumber(v json.RawMessage) (float64, bool) {
	var f float64
	if json.Unmarshal(v, &f) == nil {
		return f, true
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// firstList picks the first source that carries the named list.
func firstList(name string, sources ...rawObject) []rawObject {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if items, ok := src.objects(name); ok {
			return items
		}
	}
	return nil
}

func decodeTier(o rawObject) Tier {
	return Tier{
		ID:        o.str("tierId", "tier_id", "id"),
		Label:     o.str("label", "name"),
		MinValue:  o.integer("minValue", "min_value"),
		MaxValue:  o.optInt("maxValue", "max_value"),
		BasePrice: o.float("basePrice", "base_price"),
		UnitPrice: o.float("unitPrice", "unit_price"),
		Prices:    o.prices("prices"),
	}
}

func decodeFeature(o rawObject) Feature {
	return Feature{
		ID:            o.str("featureId", "feature_id", "id"),
		Name:          o.str("name", "display_name"),
		Enabled:       o.boolean("enabled"),
		Limit:         o.integer("limit"),
		TrialEnabled:  o.boolean("trialEnabled", "trial_enabled"),
		TrialLimit:    o.integer("trialLimit", "trial_limit"),
		PricingPeriod: o.str("pricingPeriod", "pricing_period"),
		IsSpecial:     o.boolean("isSpecialFeature", "is_special_feature"),
		Prices:        o.prices("prices"),
	}
}

func decodeNotification(o rawObject) Notification {
	return Notification{
		Method:         o.str("notifType", "notif_type", "method"),
		Category:       o.str("category"),
		Enabled:        o.boolean("enabled"),
		CreditsPerUnit: o.integer("creditsPerUnit", "credits_per_unit"),
		Prices:         o.prices("prices"),
	}
}

func decodeTiers(items []rawObject) []Tier {
	out := make([]Tier, 0, len(items))
	for _, it := range items {
		out = append(out, decodeTier(it))
	}
	return out
}

func decodeFeatures(items []rawObject) []Feature {
	out := make([]Feature, 0, len(items))
	for _, it := range items {
		out = append(out, decodeFeature(it))
	}
	return out
}

func decodeNotifications(items []rawObject) []Notification {
	out := make([]Notification, 0, len(items))
	for _, it := range items {
		out = append(out, decodeNotification(it))
	}
	return out
}

func decodeVersion(o rawObject) Version {
	return Version{
		ID:            o.str("versionId", "version_id", "id"),
		PlanID:        o.str("planId", "plan_id"),
		VersionNumber: o.str("versionNumber", "version_number"),
		IsActive:      o.boolean("isActive", "is_active"),
		EffectiveDate: o.timestamp("effectiveDate", "effective_date"),
		Changelog:     o.str("changelog"),
		CreatedBy:     o.str("createdBy", "created_by"),
		CreatedAt:     o.timestamp("createdAt", "created_at"),
		Tiers:         decodeTiers(firstList("tiers", o)),
		Features:      decodeFeatures(firstList("features", o)),
		Notifications: decodeNotifications(firstList("notifications", o)),
	}
}

func decodePlan(o rawObject) Plan {
	av := o.object("activeVersion", "active_version")

	p := Plan{
		ID:                  o.str("id", "planId", "plan_id"),
		TenantID:            o.str("tenantId", "tenant_id"),
		Name:                o.str("name"),
		Description:         o.str("description"),
		PlanType:            PlanType(o.str("planType", "plan_type")),
		TrialDuration:       o.integer("trialDuration", "trial_duration"),
		IsActive:            o.boolean("isActive", "is_active"),
		IsVisible:           o.boolean("isVisible", "is_visible"),
		IsArchived:          o.boolean("isArchived", "is_archived"),
		DefaultCurrencyCode: o.str("defaultCurrencyCode", "default_currency_code"),
		SupportedCurrencies: o.strings("supportedCurrencies", "supported_currencies"),
		SubscriberCount:     o.integer("subscriberCount", "subscriber_count"),
		CreatedAt:           o.timestamp("createdAt", "created_at"),
		UpdatedAt:           o.timestamp("updatedAt", "updated_at"),
		Tiers:               decodeTiers(firstList("tiers", o, av)),
		Features:            decodeFeatures(firstList("features", o, av)),
		Notifications:       decodeNotifications(firstList("notifications", o, av)),
	}
	if av != nil {
		v := decodeVersion(av)
		if v.PlanID == "" {
			v.PlanID = p.ID
		}
		p.ActiveVersion = &v
	}
	if p.DefaultCurrencyCode == "" && len(p.SupportedCurrencies) > 0 {
		p.DefaultCurrencyCode = p.SupportedCurrencies[0]
	}
	p.RepairCurrencies()
	return p
}

func decodeEditData(o rawObject) EditPlanData {
	e := EditPlanData{
		PlanID:               o.str("planId", "plan_id", "id"),
		Name:                 o.str("name"),
		Description:          o.str("description"),
		PlanType:             PlanType(o.str("planType", "plan_type")),
		TrialDuration:        o.integer("trialDuration", "trial_duration"),
		IsVisible:            o.boolean("isVisible", "is_visible"),
		DefaultCurrencyCode:  o.str("defaultCurrencyCode", "default_currency_code"),
		SupportedCurrencies:  o.strings("supportedCurrencies", "supported_currencies"),
		CurrentVersionNumber: o.str("currentVersionNumber", "current_version_number"),
		NextVersionNumber:    o.str("nextVersionNumber", "next_version_number"),
		Changelog:            o.str("changelog", "version_changelog"),
		EffectiveDate:        o.timestamp("effectiveDate", "effective_date"),
		Tiers:                decodeTiers(firstList("tiers", o)),
		Features:             decodeFeatures(firstList("features", o)),
		Notifications:        decodeNotifications(firstList("notifications", o)),
	}
	if e.NextVersionNumber == "" {
		e.NextVersionNumber = NextVersionNumber(e.CurrentVersionNumber)
	}
	return e
}

func decodeQuote(o rawObject) PriceQuote {
	return PriceQuote{
		PlanID:    o.str("planId", "plan_id"),
		Currency:  o.str("currency"),
		Quantity:  o.integer("quantity"),
		TierLabel: o.str("tierLabel", "tier_label"),
		BasePrice: o.float("basePrice", "base_price"),
		UnitPrice: o.float("unitPrice", "unit_price"),
		Total:     o.float("total", "total_price"),
	}
}

// unwrapList finds the array in a list response: a bare array, or an
// envelope keyed by one of keys.
func unwrapList(data []byte, keys ...string) ([]rawObject, bool) {
	if items, ok := parseArray(data); ok {
		return toObjects(items), true
	}
	env, ok := parseObject(data)
	if !ok {
		return nil, false
	}
	for _, k := range keys {
		v, ok := env.lookup(k)
		if !ok {
			continue
		}
		if items, ok := parseArray(v); ok {
			return toObjects(items), true
		}
	}
	return nil, false
}

// unwrapObject finds the record in a single-item response: a bare object,
// or an envelope keyed by one of keys.
func unwrapObject(data []byte, keys ...string) (rawObject, bool) {
	obj, ok := parseObject(data)
	if !ok {
		return nil, false
	}
	for _, k := range keys {
		if inner := obj.object(k); inner != nil {
			return inner, true
		}
	}
	return obj, true
}

func toObjects(items []json.RawMessage) []rawObject {
	out := make([]rawObject, 0, len(items))
	for _, it := range items {
		if obj, ok := parseObject(it); ok {
			out = append(out, obj)
		}
	}
	return out
}

// DecodePlans normalizes a plan list response. ok is false when no
// envelope shape matched.
func DecodePlans(data []byte) ([]Plan, bool) {
	items, ok := unwrapList(data, "plans", "data")
	if !ok {
		return nil, false
	}
	out := make([]Plan, 0, len(items))
	for _, it := range items {
		out = append(out, decodePlan(it))
	}
	return out, true
}

// DecodePlan normalizes a single-plan response.
func DecodePlan(data []byte) (Plan, bool) {
	obj, ok := unwrapObject(data, "plan", "data")
	if !ok {
		return Plan{}, false
	}
	p := decodePlan(obj)
	return p, p.ID != ""
}

// DecodeEditData normalizes an edit projection response.
func DecodeEditData(data []byte) (EditPlanData, bool) {
	obj, ok := unwrapObject(data, "plan", "data")
	if !ok {
		return EditPlanData{}, false
	}
	e := decodeEditData(obj)
	return e, e.PlanID != ""
}

// DecodeVersions normalizes a version list response.
func DecodeVersions(data []byte) ([]Version, bool) {
	items, ok := unwrapList(data, "versions", "data")
	if !ok {
		return nil, false
	}
	out := make([]Version, 0, len(items))
	for _, it := range items {
		out = append(out, decodeVersion(it))
	}
	return out, true
}

// DecodeQuote normalizes a price calculation response.
func DecodeQuote(data []byte) (PriceQuote, bool) {
	obj, ok := unwrapObject(data, "quote", "data")
	if !ok {
		return PriceQuote{}, false
	}
	return decodeQuote(obj), true
}

// DecodeIssues reads a validation response: a bare list of messages or an
// object with "errors"/"details". valid is the server's verdict when it
// sent one, else whether the list is empty.
func DecodeIssues(data []byte) (issues []string, valid bool) {
	if items, ok := parseArray(data); ok {
		for _, it := range items {
			var s string
			if json.Unmarshal(it, &s) == nil {
				issues = append(issues, s)
			}
		}
		return issues, len(issues) == 0
	}
	obj, ok := parseObject(data)
	if !ok {
		return nil, false
	}
	issues = obj.strings("errors", "details", "issues")
	if _, present := obj.lookup("valid", "isValid", "is_valid"); present {
		return issues, obj.boolean("valid", "isValid", "is_valid")
	}
	return issues, len(issues) == 0
}
