package mcpserver

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// PlanStore is the part of businessmodel.Store the tools drive.
type PlanStore interface {
	LoadPlans(ctx context.Context, f businessmodel.Filters) []businessmodel.Plan
	LoadPlanDetails(ctx context.Context, planID string) *businessmodel.Plan
	LoadPlanForEdit(ctx context.Context, planID string) *businessmodel.EditPlanData
	LoadVersions(ctx context.Context, planID string) []businessmodel.Version
	CalculatePrice(ctx context.Context, planID string, q businessmodel.PriceQuery) (*businessmodel.PriceQuote, error)
	ValidatePricing(ctx context.Context, e businessmodel.EditPlanData) ([]string, error)
	DuplicatePlan(ctx context.Context, planID, name string) *businessmodel.Plan
	TogglePlanVisibility(ctx context.Context, planID string, visible bool) bool
	ArchivePlan(ctx context.Context, planID string) bool
	ActivatePlanVersion(ctx context.Context, versionID string) bool
	ErrorMessage() string
}

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	store PlanStore
	scope *tenant.Provider
}

// NewHandlers creates a new Handlers instance. scope may be nil, in which
// case switch_environment is unavailable.
func NewHandlers(store PlanStore, scope *tenant.Provider) *Handlers {
	return &Handlers{store: store, scope: scope}
}

// failure builds a tool error from the store's last recorded failure.
func (h *Handlers) failure(action string) *mcp.CallToolResult {
	msg := h.store.ErrorMessage()
	if msg == "" {
		msg = "no tenant selected or the request was cancelled"
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %s", action, msg))
}

// HandleListPlans lists plans.
func (h *Handlers) HandleListPlans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := businessmodel.Filters{
		PlanType:        businessmodel.PlanType(req.GetString("plan_type", "")),
		Search:          req.GetString("search", ""),
		IncludeArchived: req.GetBool("include_archived", false),
		VisibleOnly:     req.GetBool("visible_only", false),
	}

	plans := h.store.LoadPlans(ctx, f)
	if plans == nil {
		return h.failure("list plans"), nil
	}
	return mcp.NewToolResultText(formatPlanList(plans)), nil
}

// HandleGetPlan shows one plan.
func (h *Handlers) HandleGetPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("plan_id is required"), nil
	}

	p := h.store.LoadPlanDetails(ctx, planID)
	if p == nil {
		return h.failure("load plan"), nil
	}
	return mcp.NewToolResultText(formatPlan(*p)), nil
}

// HandleListVersions lists a plan's versions.
func (h *Handlers) HandleListVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("plan_id is required"), nil
	}

	versions := h.store.LoadVersions(ctx, planID)
	if versions == nil {
		return h.failure("list versions"), nil
	}
	return mcp.NewToolResultText(formatVersions(versions)), nil
}

// HandleCalculatePrice quotes a plan.
func (h *Handlers) HandleCalculatePrice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("plan_id is required"), nil
	}
	quantity := req.GetInt("quantity", 0)
	if quantity <= 0 {
		return mcp.NewToolResultError("quantity must be a positive number"), nil
	}
	currency := strings.ToUpper(req.GetString("currency", ""))

	quote, err := h.store.CalculatePrice(ctx, planID, businessmodel.PriceQuery{Quantity: quantity, Currency: currency})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to calculate price: %s", businessmodel.Message(err, "price calculation failed"))), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Plan: %s\n"+
			"Quantity: %d (%s)\n"+
			"Base: %s | Unit: %s\n"+
			"Total: %s",
		quote.PlanID, quote.Quantity, quote.TierLabel,
		money(quote.BasePrice, quote.Currency), money(quote.UnitPrice, quote.Currency),
		money(quote.Total, quote.Currency))), nil
}

// HandleCheckPricing validates a plan's current pricing.
func (h *Handlers) HandleCheckPricing(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("plan_id is required"), nil
	}

	edit := h.store.LoadPlanForEdit(ctx, planID)
	if edit == nil {
		return h.failure("load plan"), nil
	}
	issues, err := h.store.ValidatePricing(ctx, *edit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to validate pricing: %s", businessmodel.Message(err, "validation failed"))), nil
	}
	if len(issues) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Pricing of %s (version %s) is valid.", edit.Name, edit.CurrentVersionNumber)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Pricing of %s has %d problem(s):\n", edit.Name, len(issues))
	for _, issue := range issues {
		fmt.Fprintf(&sb, "- %s\n", issue)
	}
	return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
}

// HandleDuplicatePlan copies a plan.
func (h *Handlers) HandleDuplicatePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("plan_id is required"), nil
	}
	name := strings.TrimSpace(req.GetString("name", ""))
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	dup := h.store.DuplicatePlan(ctx, planID, name)
	if dup == nil {
		return h.failure("duplicate plan"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Created %s (%s) from %s.\n"+
			"The copy is hidden; use set_plan_visibility to publish it.",
		dup.Name, dup.ID, planID)), nil
}

// HandleSetVisibility shows or hides a plan.
func (h *Handlers) HandleSetVisibility(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("plan_id is required"), nil
	}
	visible := req.GetBool("visible", false)

	if !h.store.TogglePlanVisibility(ctx, planID, visible) {
		return h.failure("change visibility"), nil
	}
	state := "hidden"
	if visible {
		state = "visible"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Plan %s is now %s.", planID, state)), nil
}

// HandleArchivePlan archives a plan.
func (h *Handlers) HandleArchivePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("plan_id is required"), nil
	}

	if !h.store.ArchivePlan(ctx, planID) {
		return h.failure("archive plan"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Plan %s archived.", planID)), nil
}

// HandleActivateVersion switches a plan's active version.
func (h *Handlers) HandleActivateVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("plan_id is required"), nil
	}
	versionID := req.GetString("version_id", "")
	if versionID == "" {
		return mcp.NewToolResultError("version_id is required"), nil
	}

	// Activation works on the loaded version list.
	versions := h.store.LoadVersions(ctx, planID)
	i := slices.IndexFunc(versions, func(v businessmodel.Version) bool { return v.ID == versionID })
	if i < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("Version %s is not a version of plan %s", versionID, planID)), nil
	}
	if versions[i].IsActive {
		return mcp.NewToolResultText(fmt.Sprintf("Version %s is already active.", versions[i].VersionNumber)), nil
	}

	if !h.store.ActivatePlanVersion(ctx, versionID) {
		return h.failure("activate version"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Version %s of plan %s is now active.", versions[i].VersionNumber, planID)), nil
}

// HandleSwitchEnvironment flips between live and test data.
func (h *Handlers) HandleSwitchEnvironment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.scope == nil {
		return mcp.NewToolResultError("environment switching is not available"), nil
	}
	env := tenant.Environment(req.GetString("environment", ""))
	if env != tenant.EnvLive && env != tenant.EnvTest {
		return mcp.NewToolResultError("environment must be 'live' or 'test'"), nil
	}

	h.scope.SetLive(env == tenant.EnvLive)
	return mcp.NewToolResultText(fmt.Sprintf("Now working with %s data.", env)), nil
}

// --- Formatting helpers ---

func money(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func formatPlanList(plans []businessmodel.Plan) string {
	if len(plans) == 0 {
		return "No plans found matching your criteria."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d plan(s):\n\n", len(plans))
	for i, p := range plans {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, p.Name, p.ID)
		fmt.Fprintf(&sb, "   Type: %s | Currencies: %s\n", p.PlanType, strings.Join(p.SupportedCurrencies, ", "))
		fmt.Fprintf(&sb, "   Status: %s", planStatus(p))
		if p.ActiveVersion != nil {
			fmt.Fprintf(&sb, " | Version: %s", p.ActiveVersion.VersionNumber)
		}
		sb.WriteString("\n")
		if i < len(plans)-1 {
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func planStatus(p businessmodel.Plan) string {
	var parts []string
	switch {
	case p.IsArchived:
		parts = append(parts, "archived")
	case p.IsActive:
		parts = append(parts, "active")
	default:
		parts = append(parts, "inactive")
	}
	if p.IsVisible {
		parts = append(parts, "visible")
	} else {
		parts = append(parts, "hidden")
	}
	return strings.Join(parts, ", ")
}

func formatPrices(prices businessmodel.Prices) string {
	codes := slices.Sorted(maps.Keys(prices))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, money(prices[c], c))
	}
	return strings.Join(out, " / ")
}

func formatPlan(p businessmodel.Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", p.Name, p.ID)
	if p.Description != "" {
		fmt.Fprintf(&sb, "%s\n", p.Description)
	}
	fmt.Fprintf(&sb, "Type: %s | Trial: %d days | Status: %s\n", p.PlanType, p.TrialDuration, planStatus(p))
	fmt.Fprintf(&sb, "Currencies: %s (default %s)\n", strings.Join(p.SupportedCurrencies, ", "), p.DefaultCurrencyCode)
	if p.ActiveVersion != nil {
		fmt.Fprintf(&sb, "Active version: %s\n", p.ActiveVersion.VersionNumber)
	}

	if len(p.Tiers) > 0 {
		sb.WriteString("\nTiers:\n")
		for _, t := range p.Tiers {
			upper := "+"
			if t.MaxValue != nil {
				upper = fmt.Sprintf("-%d", *t.MaxValue)
			}
			fmt.Fprintf(&sb, "- %d%s: %s\n", t.MinValue, upper, formatPrices(t.Prices))
		}
	}
	if len(p.Features) > 0 {
		sb.WriteString("\nFeatures:\n")
		for _, f := range p.Features {
			name := f.Name
			if name == "" {
				name = f.ID
			}
			fmt.Fprintf(&sb, "- %s (limit %d)", name, f.Limit)
			if f.IsSpecial {
				fmt.Fprintf(&sb, " %s", formatPrices(f.Prices))
			}
			sb.WriteString("\n")
		}
	}
	if len(p.Notifications) > 0 {
		sb.WriteString("\nNotifications:\n")
		for _, n := range p.Notifications {
			fmt.Fprintf(&sb, "- %s: %d credit(s), %s\n", n.Method, n.CreditsPerUnit, formatPrices(n.Prices))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatVersions(versions []businessmodel.Version) string {
	if len(versions) == 0 {
		return "This plan has no versions."
	}
	var sb strings.Builder
	for _, v := range versions {
		marker := " "
		if v.IsActive {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %s (%s)", marker, v.VersionNumber, v.ID)
		if !v.EffectiveDate.IsZero() {
			fmt.Fprintf(&sb, " effective %s", v.EffectiveDate.Format("2006-01-02"))
		}
		if v.Changelog != "" {
			fmt.Fprintf(&sb, ": %s", v.Changelog)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("(* = active)")
	return sb.String()
}
