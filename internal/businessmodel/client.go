package businessmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/circuitbreaker"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/logging"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/metrics"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/retry"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/traces"
	"go.opentelemetry.io/otel/trace"
)

// BasePath is the prefix of every business-model endpoint.
const BasePath = "/api/business-model"

// Scope headers sent with every request.
const (
	HeaderTenantID    = "x-tenant-id"
	HeaderEnvironment = "x-environment"
	HeaderUserID      = "x-user-id"
	HeaderRequestID   = "X-Request-ID"
)

// API is the business-model backend as seen by the Store. Responses are
// returned undecoded; the Store owns shape sniffing and normalization.
type API interface {
	ListPlans(ctx context.Context, tc tenant.Context, f Filters) (json.RawMessage, error)
	GetPlan(ctx context.Context, tc tenant.Context, planID string) (json.RawMessage, error)
	GetPlanForEdit(ctx context.Context, tc tenant.Context, planID string) (json.RawMessage, error)
	UpdatePlanAsNewVersion(ctx context.Context, tc tenant.Context, e EditPlanData) (json.RawMessage, error)
	CreatePlan(ctx context.Context, tc tenant.Context, p Plan) (json.RawMessage, error)
	UpdatePlan(ctx context.Context, tc tenant.Context, planID string, p Plan) (json.RawMessage, error)
	DeletePlan(ctx context.Context, tc tenant.Context, planID string) error
	DuplicatePlan(ctx context.Context, tc tenant.Context, planID, name string) (json.RawMessage, error)
	SetPlanVisibility(ctx context.Context, tc tenant.Context, planID string, visible bool) (json.RawMessage, error)
	ArchivePlan(ctx context.Context, tc tenant.Context, planID string) (json.RawMessage, error)
	ListVersions(ctx context.Context, tc tenant.Context, planID string) (json.RawMessage, error)
	ActivateVersion(ctx context.Context, tc tenant.Context, versionID string) (json.RawMessage, error)
	CalculatePrice(ctx context.Context, tc tenant.Context, planID string, q PriceQuery) (json.RawMessage, error)
	ValidatePricing(ctx context.Context, tc tenant.Context, e EditPlanData) (json.RawMessage, error)
}

// ClientConfig holds the configuration for connecting to the business-model API.
type ClientConfig struct {
	BaseURL          string // e.g. "http://localhost:8080"
	APIKey           string
	Timeout          time.Duration
	Retry            retry.Policy // applied to reads only
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Client is an HTTP implementation of API.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new client for the business-model API.
func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = retry.Policy{Attempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker.OnTransition(func(key string, from, to circuitbreaker.State) {
		c.logger.Warn("business-model circuit changed", "endpoint", key, "from", from.String(), "to", to.String())
	})
	return c
}

type request struct {
	endpoint   string
	method     string
	path       string
	query      url.Values
	body       any
	idempotent bool
	planID     string
}

func (c *Client) do(ctx context.Context, tc tenant.Context, r request) (json.RawMessage, error) {
	ctx, span := traces.StartSpan(ctx, "bm."+r.endpoint,
		traces.Endpoint(r.endpoint),
		traces.TenantID(tc.TenantID),
		traces.Environment(string(tc.Environment())),
	)
	if r.planID != "" {
		span.SetAttributes(traces.PlanID(r.planID))
	}

	var payload []byte
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			err = fmt.Errorf("marshal request body: %w", err)
			traces.End(span, err)
			return nil, err
		}
		payload = data
	}

	policy := retry.Once
	if r.idempotent {
		policy = c.cfg.Retry
	}

	var out json.RawMessage
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		err := c.breaker.Execute(r.endpoint, countsAgainstCircuit, func() error {
			var err error
			out, err = c.send(ctx, tc, r, payload)
			return err
		})
		if err != nil && !retryable(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		err = fmt.Errorf("%s: %w", r.endpoint, err)
	}
	traces.End(span, err)
	return out, err
}

func (c *Client) send(ctx context.Context, tc tenant.Context, r request, payload []byte) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.BaseURL + BasePath + r.path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	reqID := logging.RequestID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set(HeaderRequestID, reqID)
	req.Header.Set(HeaderTenantID, tc.TenantID)
	req.Header.Set(HeaderEnvironment, string(tc.Environment()))
	if tc.UserID != "" {
		req.Header.Set(HeaderUserID, tc.UserID)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveAPI(r.endpoint, 0, time.Since(start).Seconds())
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(traces.HTTPStatus(resp.StatusCode))
	respBody, err := io.ReadAll(resp.Body)
	metrics.ObserveAPI(r.endpoint, resp.StatusCode, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("business-model api call",
		"endpoint", r.endpoint,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp.StatusCode, respBody)
	}
	return json.RawMessage(respBody), nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	obj, ok := parseObject(body)
	if !ok {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}
	apiErr.Code = obj.str("code", "error")
	apiErr.Message = obj.str("message", "error")
	apiErr.Details = obj.strings("details", "errors", "validation_errors")
	return apiErr
}

// countsAgainstCircuit: transport failures and 5xx trip the breaker;
// client errors and cancellations do not.
func countsAgainstCircuit(err error) bool {
	if IsAborted(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

func retryable(err error) bool {
	if IsAborted(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

func planPath(planID string, suffix ...string) string {
	p := "/plans/" + url.PathEscape(planID)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// ListPlans lists the plans of the scope's tenant and environment.
func (c *Client) ListPlans(ctx context.Context, tc tenant.Context, f Filters) (json.RawMessage, error) {
	return c.do(ctx, tc, request{endpoint: "plans.list", method: http.MethodGet, path: "/plans", query: f.Query(), idempotent: true})
}

// GetPlan fetches one plan.
func (c *Client) GetPlan(ctx context.Context, tc tenant.Context, planID string) (json.RawMessage, error) {
	return c.do(ctx, tc, request{endpoint: "plans.get", method: http.MethodGet, path: planPath(planID), idempotent: true, planID: planID})
}

// GetPlanForEdit fetches the edit projection of a plan.
func (c *Client) GetPlanForEdit(ctx context.Context, tc tenant.Context, planID string) (json.RawMessage, error) {
	return c.do(ctx, tc, request{endpoint: "plans.edit", method: http.MethodGet, path: planPath(planID, "edit"), idempotent: true, planID: planID})
}

// UpdatePlanAsNewVersion submits an edit buffer as the plan's next version.
func (c *Client) UpdatePlanAsNewVersion(ctx context.Context, tc tenant.Context, e EditPlanData) (json.RawMessage, error) {
	return c.do(ctx, tc, request{endpoint: "plans.new_version", method: http.MethodPost, path: "/plans/edit", body: e, planID: e.PlanID})
}

// CreatePlan creates a plan.
func (c *Client) CreatePlan(ctx context.Context, tc tenant.Context, p Plan) (json.RawMessage, error) {
	return c.do(ctx, tc, request{endpoint: "plans.create", method: http.MethodPost, path: "/plans", body: p})
}

// UpdatePlan replaces a plan's metadata.
func (c *Client) UpdatePlan(ctx context.Context, tc tenant.Context, planID string, p Plan) (json.RawMessage, error) {
	return c.do(ctx, tc, request{endpoint: "plans.update", method: http.MethodPut, path: planPath(planID), body: p, planID: planID})
}

// DeletePlan deletes a plan.
func (c *Client) DeletePlan(ctx context.Context, tc tenant.Context, planID string) error {
	_, err := c.do(ctx, tc, request{endpoint: "plans.delete", method: http.MethodDelete, path: planPath(planID), planID: planID})
	return err
}

// DuplicatePlan deep-copies a plan under a new id and name.
func (c *Client) DuplicatePlan(ctx context.Context, tc tenant.Context, planID, name string) (json.RawMessage, error) {
	body := map[string]string{"name": name}
	return c.do(ctx, tc, request{endpoint: "plans.duplicate", method: http.MethodPost, path: planPath(planID, "duplicate"), body: body, planID: planID})
}

// SetPlanVisibility shows or hides a plan.
func (c *Client) SetPlanVisibility(ctx context.Context, tc tenant.Context, planID string, visible bool) (json.RawMessage, error) {
	body := map[string]bool{"is_visible": visible}
	return c.do(ctx, tc, request{endpoint: "plans.visibility", method: http.MethodPut, path: planPath(planID, "visibility"), body: body, planID: planID})
}

// ArchivePlan soft-deletes a plan.
func (c *Client) ArchivePlan(ctx context.Context, tc tenant.Context, planID string) (json.RawMessage, error) {
	return c.do(ctx, tc, request{endpoint: "plans.archive", method: http.MethodPut, path: planPath(planID, "archive"), planID: planID})
}

// ListVersions lists every version of a plan.
func (c *Client) ListVersions(ctx context.Context, tc tenant.Context, planID string) (json.RawMessage, error) {
	return c.do(ctx, tc, request{endpoint: "versions.list", method: http.MethodGet, path: planPath(planID, "versions"), idempotent: true, planID: planID})
}

// ActivateVersion makes a version the plan's active one.
func (c *Client) ActivateVersion(ctx context.Context, tc tenant.Context, versionID string) (json.RawMessage, error) {
	path := "/plan-versions/" + url.PathEscape(versionID) + "/activate"
	return c.do(ctx, tc, request{endpoint: "versions.activate", method: http.MethodPut, path: path})
}

// CalculatePrice quotes a plan for a quantity and currency.
func (c *Client) CalculatePrice(ctx context.Context, tc tenant.Context, planID string, q PriceQuery) (json.RawMessage, error) {
	return c.do(ctx, tc, request{endpoint: "pricing.calculate", method: http.MethodPost, path: planPath(planID, "calculate-price"), body: q, idempotent: true, planID: planID})
}

// ValidatePricing asks the server to validate an edit buffer.
func (c *Client) ValidatePricing(ctx context.Context, tc tenant.Context, e EditPlanData) (json.RawMessage, error) {
	return c.do(ctx, tc, request{endpoint: "pricing.validate", method: http.MethodPost, path: "/validate-pricing", body: e, idempotent: true, planID: e.PlanID})
}

var _ API = (*Client)(nil)
