package mcpserver

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/logging"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/planapi"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/retry"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// --- Test helpers ---

var liveT1 = tenant.Context{TenantID: "t1", UserID: "u1", IsLive: true}

type testSetup struct {
	h     *Handlers
	scope *tenant.Provider
	mem   *planapi.MemoryStore
	plans map[string]businessmodel.Plan // seeded plans by name
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := planapi.NewMemoryStore()
	r := gin.New()
	planapi.NewHandler(mem, planapi.WithLogger(logging.Discard())).RegisterRoutes(r.Group(businessmodel.BasePath))
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	ctx := context.Background()
	require.NoError(t, planapi.Seed(ctx, mem, liveT1, planapi.DemoPlans()...))
	seeded, err := mem.List(ctx, liveT1, businessmodel.Filters{IncludeArchived: true})
	require.NoError(t, err)
	byName := make(map[string]businessmodel.Plan, len(seeded))
	for _, p := range seeded {
		byName[p.Name] = p
	}

	scope := tenant.NewProvider(liveT1)
	client := businessmodel.NewClient(businessmodel.ClientConfig{BaseURL: ts.URL, Retry: retry.Once},
		businessmodel.WithClientLogger(logging.Discard()))
	store := businessmodel.NewStore(client, scope,
		businessmodel.WithLogger(logging.Discard()),
		businessmodel.WithNotifier(businessmodel.LogNotifier{Logger: logging.Discard()}),
	)
	t.Cleanup(store.Watch(scope))

	return &testSetup{h: NewHandlers(store, scope), scope: scope, mem: mem, plans: byName}
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, fn toolHandler, args map[string]any) (string, bool) {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	require.NoError(t, err)
	return resultText(t, result), result.IsError
}

// ============================================================
// Handler tests
// ============================================================

func TestHandleListPlans(t *testing.T) {
	s := newTestSetup(t)

	text, isErr := call(t, s.h.HandleListPlans, nil)
	require.False(t, isErr, text)
	assert.Contains(t, text, "Found 2 plan(s)")
	assert.Contains(t, text, "Starter")
	assert.Contains(t, text, "Catalogue")
	assert.Contains(t, text, "Version: 1.0")

	text, _ = call(t, s.h.HandleListPlans, map[string]any{"visible_only": true})
	assert.Contains(t, text, "Found 1 plan(s)")
	assert.NotContains(t, text, "Catalogue")

	text, _ = call(t, s.h.HandleListPlans, map[string]any{"search": "nothing like this"})
	assert.Equal(t, "No plans found matching your criteria.", text)
}

func TestHandleGetPlan(t *testing.T) {
	s := newTestSetup(t)
	starter := s.plans["Starter"]

	text, isErr := call(t, s.h.HandleGetPlan, map[string]any{"plan_id": starter.ID})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Starter ("+starter.ID+")")
	assert.Contains(t, text, "Trial: 14 days")
	assert.Contains(t, text, "- 1-10: 499.00 INR / 6.00 USD")
	assert.Contains(t, text, "- 11+: 399.00 INR / 5.00 USD")
	assert.Contains(t, text, "- email: 1 credit(s)")
}

func TestHandleGetPlan_Errors(t *testing.T) {
	s := newTestSetup(t)

	text, isErr := call(t, s.h.HandleGetPlan, nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "plan_id is required")

	text, isErr = call(t, s.h.HandleGetPlan, map[string]any{"plan_id": "plan_missing"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Failed to load plan")
}

func TestHandleCalculatePrice(t *testing.T) {
	s := newTestSetup(t)
	starter := s.plans["Starter"]

	text, isErr := call(t, s.h.HandleCalculatePrice, map[string]any{"plan_id": starter.ID, "quantity": 3, "currency": "usd"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Total: 18.00 USD")
	assert.Contains(t, text, "1-10 users")

	text, isErr = call(t, s.h.HandleCalculatePrice, map[string]any{"plan_id": starter.ID, "quantity": 0})
	assert.True(t, isErr)
	assert.Contains(t, text, "quantity must be a positive number")

	_, isErr = call(t, s.h.HandleCalculatePrice, map[string]any{"plan_id": starter.ID, "quantity": 3, "currency": "EUR"})
	assert.True(t, isErr)
}

func TestHandleCheckPricing(t *testing.T) {
	s := newTestSetup(t)

	text, isErr := call(t, s.h.HandleCheckPricing, map[string]any{"plan_id": s.plans["Catalogue"].ID})
	require.False(t, isErr, text)
	assert.Equal(t, "Pricing of Catalogue (version 1.0) is valid.", text)
}

func TestHandleCheckPricing_Problems(t *testing.T) {
	s := newTestSetup(t)
	ctx := context.Background()

	p := s.plans["Starter"]
	p.Tiers[1].MinValue = 5
	require.NoError(t, s.mem.Update(ctx, liveT1, &p))

	text, isErr := call(t, s.h.HandleCheckPricing, map[string]any{"plan_id": p.ID})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Pricing of Starter has 1 problem(s):")
	assert.Contains(t, text, "- tier 2 overlaps tier 1")
}

func TestHandleDuplicatePlan(t *testing.T) {
	s := newTestSetup(t)
	starter := s.plans["Starter"]

	text, isErr := call(t, s.h.HandleDuplicatePlan, map[string]any{"plan_id": starter.ID, "name": "Starter EU"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Created Starter EU")
	assert.Contains(t, text, "The copy is hidden")

	list, err := s.mem.List(context.Background(), liveT1, businessmodel.Filters{})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, isErr = call(t, s.h.HandleDuplicatePlan, map[string]any{"plan_id": starter.ID})
	assert.True(t, isErr)
}

func TestHandleSetVisibilityAndArchive(t *testing.T) {
	s := newTestSetup(t)
	ctx := context.Background()
	catalogue := s.plans["Catalogue"]

	text, isErr := call(t, s.h.HandleSetVisibility, map[string]any{"plan_id": catalogue.ID, "visible": true})
	require.False(t, isErr, text)
	assert.Equal(t, "Plan "+catalogue.ID+" is now visible.", text)
	p, err := s.mem.Get(ctx, liveT1, catalogue.ID)
	require.NoError(t, err)
	assert.True(t, p.IsVisible)

	text, isErr = call(t, s.h.HandleArchivePlan, map[string]any{"plan_id": catalogue.ID})
	require.False(t, isErr, text)
	p, err = s.mem.Get(ctx, liveT1, catalogue.ID)
	require.NoError(t, err)
	assert.True(t, p.IsArchived)

	text, isErr = call(t, s.h.HandleArchivePlan, map[string]any{"plan_id": "plan_missing"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Failed to archive plan")
}

func TestHandleVersions(t *testing.T) {
	s := newTestSetup(t)
	ctx := context.Background()
	starter := s.plans["Starter"]

	v2 := businessmodel.Version{ID: "ver_second", VersionNumber: "1.1", Changelog: "Price rise", Tiers: starter.Tiers}
	require.NoError(t, s.mem.AddVersion(ctx, liveT1, starter.ID, v2))
	versions, err := s.mem.Versions(ctx, liveT1, starter.ID)
	require.NoError(t, err)
	first := versions[0].ID

	text, isErr := call(t, s.h.HandleListVersions, map[string]any{"plan_id": starter.ID})
	require.False(t, isErr, text)
	assert.Contains(t, text, "  1.0 ("+first+")")
	assert.Contains(t, text, "* 1.1 (ver_second): Price rise")

	text, isErr = call(t, s.h.HandleActivateVersion, map[string]any{"plan_id": starter.ID, "version_id": "ver_second"})
	require.False(t, isErr, text)
	assert.Equal(t, "Version 1.1 is already active.", text)

	text, isErr = call(t, s.h.HandleActivateVersion, map[string]any{"plan_id": starter.ID, "version_id": first})
	require.False(t, isErr, text)
	assert.Equal(t, "Version 1.0 of plan "+starter.ID+" is now active.", text)

	versions, err = s.mem.Versions(ctx, liveT1, starter.ID)
	require.NoError(t, err)
	assert.True(t, versions[0].IsActive)
	assert.False(t, versions[1].IsActive)

	_, isErr = call(t, s.h.HandleActivateVersion, map[string]any{"plan_id": starter.ID, "version_id": "ver_other"})
	assert.True(t, isErr)
}

func TestHandleSwitchEnvironment(t *testing.T) {
	s := newTestSetup(t)

	text, _ := call(t, s.h.HandleListPlans, nil)
	require.Contains(t, text, "Found 2 plan(s)")

	text, isErr := call(t, s.h.HandleSwitchEnvironment, map[string]any{"environment": "test"})
	require.False(t, isErr, text)
	assert.Equal(t, "Now working with test data.", text)
	assert.False(t, s.scope.Current().IsLive)

	text, _ = call(t, s.h.HandleListPlans, nil)
	assert.Equal(t, "No plans found matching your criteria.", text, "test data is separate from live data")

	_, isErr = call(t, s.h.HandleSwitchEnvironment, map[string]any{"environment": "prod"})
	assert.True(t, isErr)

	_, isErr = call(t, NewHandlers(nil, nil).HandleSwitchEnvironment, map[string]any{"environment": "live"})
	assert.True(t, isErr)
}

func TestHandleListPlans_NoTenant(t *testing.T) {
	s := newTestSetup(t)
	s.scope.SwitchTenant("")

	text, isErr := call(t, s.h.HandleListPlans, nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "Failed to list plans")
}

// ============================================================
// Formatting tests
// ============================================================

func TestFormatPlanList_Empty(t *testing.T) {
	assert.Equal(t, "No plans found matching your criteria.", formatPlanList(nil))
}

func TestPlanStatus(t *testing.T) {
	assert.Equal(t, "active, visible", planStatus(businessmodel.Plan{IsActive: true, IsVisible: true}))
	assert.Equal(t, "archived, hidden", planStatus(businessmodel.Plan{IsArchived: true, IsActive: true}))
	assert.Equal(t, "inactive, hidden", planStatus(businessmodel.Plan{}))
}

func TestFormatVersions_Empty(t *testing.T) {
	assert.Equal(t, "This plan has no versions.", formatVersions([]businessmodel.Version{}))
}

func TestNewMCPServer(t *testing.T) {
	s := newTestSetup(t)
	srv := NewMCPServer(s.h.store, s.scope)
	require.NotNil(t, srv)
}
