package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/logging"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/planapi"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// newBackend serves the dev plan API with the demo catalogue for tenant t1
// (live) and points planctl at it.
func newBackend(t *testing.T) *planapi.MemoryStore {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := planapi.NewMemoryStore()
	require.NoError(t, planapi.Seed(context.Background(), store,
		tenant.Context{TenantID: "t1", IsLive: true}, planapi.DemoPlans()...))

	r := gin.New()
	planapi.NewHandler(store, planapi.WithLogger(logging.Discard())).
		RegisterRoutes(r.Group(businessmodel.BasePath))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	t.Setenv("BM_API_URL", srv.URL)
	t.Setenv("BM_TENANT_ID", "t1")
	t.Setenv("BM_ENVIRONMENT", "live")
	t.Setenv("BM_RETRY_ATTEMPTS", "1")
	t.Setenv("REDIS_URL", "")
	t.Setenv("BM_EVENTS_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	return store
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func planIDs(t *testing.T) map[string]string {
	t.Helper()
	out, _, err := run(t, "list", "--json")
	require.NoError(t, err)
	var plans []businessmodel.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plans))
	ids := make(map[string]string, len(plans))
	for _, p := range plans {
		ids[p.Name] = p.ID
	}
	return ids
}

func TestList(t *testing.T) {
	newBackend(t)

	out, _, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Starter")
	assert.Contains(t, out, "Catalogue")
	assert.Contains(t, out, "hidden")
}

func TestListFilters(t *testing.T) {
	newBackend(t)

	out, _, err := run(t, "list", "--visible")
	require.NoError(t, err)
	assert.Contains(t, out, "Starter")
	assert.NotContains(t, out, "Catalogue")
}

func TestListOtherEnvironmentIsEmpty(t *testing.T) {
	newBackend(t)

	out, _, err := run(t, "list", "--json", "--env", "test")
	require.NoError(t, err)
	var plans []businessmodel.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plans))
	assert.Empty(t, plans)
}

func TestMissingTenant(t *testing.T) {
	newBackend(t)
	t.Setenv("BM_TENANT_ID", "")

	_, errOut, err := run(t, "list")
	require.Error(t, err)
	assert.Contains(t, errOut, "no tenant")
}

func TestGet(t *testing.T) {
	newBackend(t)
	ids := planIDs(t)

	out, _, err := run(t, "get", ids["Starter"])
	require.NoError(t, err)
	assert.Contains(t, out, "Starter ("+ids["Starter"]+")")
	assert.Contains(t, out, "499.00 INR")
	assert.Contains(t, out, "email")
}

func TestGetUnknownPlan(t *testing.T) {
	newBackend(t)

	_, errOut, err := run(t, "get", "plan_missing")
	require.Error(t, err)
	assert.Contains(t, errOut, "get plan")
}

func TestVersionsAndActivate(t *testing.T) {
	newBackend(t)
	id := planIDs(t)["Starter"]

	out, _, err := run(t, "versions", id)
	require.NoError(t, err)
	assert.Contains(t, out, "1.0")
	assert.Contains(t, out, "Initial version")

	_, errOut, err := run(t, "activate", id, "1.0")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Version activated")

	_, errOut, err = run(t, "activate", id, "9.9")
	require.Error(t, err)
	assert.Contains(t, errOut, "has no version")
}

func TestPrice(t *testing.T) {
	newBackend(t)
	id := planIDs(t)["Starter"]

	out, _, err := run(t, "price", id, "-q", "5", "-c", "INR", "--json")
	require.NoError(t, err)
	var q businessmodel.PriceQuote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, "INR", q.Currency)
	assert.Equal(t, 5, q.Quantity)
	assert.InDelta(t, 2495.0, q.Total, 0.001)

	out, _, err = run(t, "price", id, "-q", "5", "-c", "USD")
	require.NoError(t, err)
	assert.Contains(t, out, "30.00 USD")
}

func TestValidate(t *testing.T) {
	newBackend(t)
	id := planIDs(t)["Starter"]

	out, _, err := run(t, "validate", id)
	require.NoError(t, err)
	assert.Contains(t, out, "pricing is valid")
}

func TestDuplicateVisibilityArchiveDelete(t *testing.T) {
	newBackend(t)
	id := planIDs(t)["Starter"]

	out, errOut, err := run(t, "duplicate", id, "Starter Copy")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Plan duplicated")
	copyID := string(bytes.TrimSpace([]byte(out)))
	require.NotEmpty(t, copyID)
	assert.Equal(t, copyID, planIDs(t)["Starter Copy"])

	_, _, err = run(t, "visibility", copyID, "show")
	require.NoError(t, err)
	out, _, err = run(t, "list", "--visible")
	require.NoError(t, err)
	assert.Contains(t, out, "Starter Copy")

	_, _, err = run(t, "visibility", copyID, "sideways")
	assert.Error(t, err)

	_, errOut, err = run(t, "archive", copyID)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Plan archived")
	out, _, err = run(t, "list", "--archived")
	require.NoError(t, err)
	assert.Contains(t, out, "archived")

	_, _, err = run(t, "delete", copyID)
	require.NoError(t, err)
	out, _, err = run(t, "list", "--archived")
	require.NoError(t, err)
	assert.NotContains(t, out, "Starter Copy")
}

func TestCreateUpdateAndEdit(t *testing.T) {
	newBackend(t)
	dir := t.TempDir()

	planFile := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(planFile, []byte(`{
		"name": "Team",
		"plan_type": "Per User",
		"default_currency_code": "INR",
		"supported_currencies": ["INR"],
		"tiers": [{"min_value": 1, "base_price": 0, "prices": {"INR": 250}}]
	}`), 0o600))

	out, errOut, err := run(t, "create", "-f", planFile)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Plan created")
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)
	assert.Equal(t, id, planIDs(t)["Team"])

	out, _, err = run(t, "update", id, "--name", "Team Plus", "--trial-days", "14")
	require.NoError(t, err)
	assert.Contains(t, out, "Team Plus ("+id+")")
	assert.Contains(t, out, "Trial: 14 days")

	_, _, err = run(t, "update", id)
	require.Error(t, err)

	changes := filepath.Join(dir, "changes.json")
	require.NoError(t, os.WriteFile(changes, []byte(`{
		"tiers": [{"min_value": 1, "base_price": 0, "prices": {"INR": 300}}]
	}`), 0o600))

	_, errOut, err = run(t, "edit", id, "-f", changes, "--changelog", "Raise seat price")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Version 1.1 created")

	out, _, err = run(t, "versions", id)
	require.NoError(t, err)
	assert.Contains(t, out, "1.1")
	assert.Contains(t, out, "Raise seat price")

	out, _, err = run(t, "price", id, "-q", "2", "--json")
	require.NoError(t, err)
	var q businessmodel.PriceQuote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.InDelta(t, 600.0, q.Total, 0.001)

	out, _, err = run(t, "get", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Team Plus")
}

func TestCreateRejectsInvalidPricing(t *testing.T) {
	newBackend(t)
	planFile := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(planFile, []byte(`{"name":"Empty","supported_currencies":["INR"]}`), 0o600))

	_, errOut, err := run(t, "create", "-f", planFile)
	require.Error(t, err)
	assert.Contains(t, errOut, "Create failed")
}

func TestOverlayReplacesNamedFields(t *testing.T) {
	e := businessmodel.EditPlanData{
		PlanID:              "p1",
		Name:                "Growth",
		SupportedCurrencies: []string{"INR", "USD"},
		Tiers:               []businessmodel.Tier{{MinValue: 1, Prices: businessmodel.Prices{"INR": 100, "USD": 2}}},
	}

	next, err := overlay(e, map[string]json.RawMessage{
		"tiers": json.RawMessage(`[{"min_value":1,"prices":{"INR":120}}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Growth", next.Name)
	assert.Equal(t, []string{"INR", "USD"}, next.SupportedCurrencies)
	assert.Equal(t, businessmodel.Prices{"INR": 120}, next.Tiers[0].Prices, "the old USD price does not leak through")
}

func TestWriteFailureIsReported(t *testing.T) {
	newBackend(t)

	_, errOut, err := run(t, "archive", "plan_missing")
	require.Error(t, err)
	assert.Contains(t, errOut, "Archive failed")
}

func TestEventsURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/ws", eventsURL("http://localhost:8080/"))
	assert.Equal(t, "wss://api.example.com/ws", eventsURL("https://api.example.com"))
}
