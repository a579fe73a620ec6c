// Package planapi is an in-memory implementation of the business-model
// API, mounted by the dev server and used as the backend in client tests.
package planapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/idgen"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/logging"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/validation"
)

const scopeKey = "bm.scope"

// Broadcaster pushes change notifications to connected clients.
type Broadcaster interface {
	BroadcastPlanChanged(tenantID, env, planID, action string)
	BroadcastEnvironmentChanged(tenantID, env string)
}

// Handler provides the business-model HTTP endpoints.
type Handler struct {
	store  Store
	render renderer
	events Broadcaster
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithSpelling selects the response spelling.
func WithSpelling(s Spelling) Option {
	return func(h *Handler) { h.render = renderer{spelling: s} }
}

// WithBroadcaster publishes plan and environment changes.
func WithBroadcaster(b Broadcaster) Option {
	return func(h *Handler) { h.events = b }
}

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a new business-model handler.
func NewHandler(store Store, opts ...Option) *Handler {
	h := &Handler{
		store:  store,
		render: renderer{spelling: SpellSnake},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts every endpoint on r, which is expected to sit at
// businessmodel.BasePath.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("", ScopeMiddleware(), validation.IDParamMiddleware())

	g.GET("/plans", h.ListPlans)
	g.POST("/plans", h.CreatePlan)
	g.POST("/plans/edit", h.CreateVersion)
	g.GET("/plans/:id", h.GetPlan)
	g.PUT("/plans/:id", h.UpdatePlan)
	g.DELETE("/plans/:id", h.DeletePlan)
	g.GET("/plans/:id/edit", h.GetPlanForEdit)
	g.POST("/plans/:id/duplicate", h.DuplicatePlan)
	g.PUT("/plans/:id/visibility", h.SetVisibility)
	g.PUT("/plans/:id/archive", h.ArchivePlan)
	g.GET("/plans/:id/versions", h.ListVersions)
	g.POST("/plans/:id/calculate-price", h.CalculatePrice)
	g.PUT("/plan-versions/:id/activate", h.ActivateVersion)
	g.POST("/validate-pricing", h.ValidatePricing)
	g.PUT("/environment", h.SetEnvironment)
}

// ScopeMiddleware reads the tenant and environment headers. Requests
// without a tenant are rejected.
func ScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(businessmodel.HeaderTenantID))
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "missing_tenant",
				"message": businessmodel.HeaderTenantID + " header is required",
			})
			return
		}
		env := tenant.Environment(strings.ToLower(c.GetHeader(businessmodel.HeaderEnvironment)))
		if env != "" && env != tenant.EnvLive && env != tenant.EnvTest {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_environment",
				"message": "environment must be live or test",
			})
			return
		}
		c.Set(scopeKey, tenant.Context{
			TenantID: tenantID,
			UserID:   c.GetHeader(businessmodel.HeaderUserID),
			IsLive:   env != tenant.EnvTest,
		})
		c.Next()
	}
}

func scopeOf(c *gin.Context) tenant.Context {
	v, _ := c.Get(scopeKey)
	sc, _ := v.(tenant.Context)
	return sc
}

func (h *Handler) log(sc tenant.Context) *slog.Logger {
	return logging.WithTenant(h.logger, sc.TenantID, string(sc.Environment()))
}

func (h *Handler) publish(sc tenant.Context, planID, action string) {
	if h.events != nil {
		h.events.BroadcastPlanChanged(sc.TenantID, string(sc.Environment()), planID, action)
	}
}

func (h *Handler) respond(c *gin.Context, status int, payload any, err error) {
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(status, payload)
}

func (h *Handler) respondPlan(c *gin.Context, status int, p *businessmodel.Plan) {
	payload, err := h.render.record(p, "plan")
	h.respond(c, status, payload, err)
}

// respondStatus answers a status change, with the plan unless the
// spelling calls for a bare acknowledgement.
func (h *Handler) respondStatus(c *gin.Context, p *businessmodel.Plan) {
	if h.render.bareStatus() {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	h.respondPlan(c, http.StatusOK, p)
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code, "message": message})
}

func validationFailed(c *gin.Context, message string, details []string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": message, "details": details})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": what + " not found"})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}

// storeError maps a store error onto a response.
func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, businessmodel.ErrPlanNotFound):
		notFound(c, "plan")
	case errors.Is(err, ErrVersionNotFound):
		notFound(c, "version")
	case errors.Is(err, ErrPlanExists):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": err.Error()})
	default:
		internalError(c, err)
	}
}

// filtersFromQuery is the inverse of businessmodel.Filters.Query.
func filtersFromQuery(c *gin.Context) businessmodel.Filters {
	flag := func(name string) bool {
		b, _ := strconv.ParseBool(c.Query(name))
		return b
	}
	return businessmodel.Filters{
		PlanType:        businessmodel.PlanType(c.Query("plan_type")),
		IncludeArchived: flag("include_archived"),
		VisibleOnly:     flag("visible_only"),
		Search:          strings.TrimSpace(c.Query("search")),
	}
}

// ListPlans handles GET /plans
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.store.List(c.Request.Context(), scopeOf(c), filtersFromQuery(c))
	if err != nil {
		internalError(c, err)
		return
	}
	payload, err := h.render.list(plans, "plans")
	h.respond(c, http.StatusOK, payload, err)
}

// GetPlan handles GET /plans/:id
func (h *Handler) GetPlan(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), scopeOf(c), c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	h.respondPlan(c, http.StatusOK, p)
}

// GetPlanForEdit handles GET /plans/:id/edit
func (h *Handler) GetPlanForEdit(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), scopeOf(c), c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	payload, err := h.render.record(p.EditData(), "plan")
	h.respond(c, http.StatusOK, payload, err)
}

// checkPlan runs the request-level checks shared by create and update.
func checkPlan(p *businessmodel.Plan) validation.ValidationErrors {
	p.Name = validation.SanitizeString(p.Name, 200)
	p.Description = validation.SanitizeString(p.Description, 2000)
	p.DefaultCurrencyCode = validation.SanitizeCurrency(p.DefaultCurrencyCode)
	for i, code := range p.SupportedCurrencies {
		p.SupportedCurrencies[i] = validation.SanitizeCurrency(code)
	}
	if p.PlanType == "" {
		p.PlanType = businessmodel.PlanTypePerUser
	}
	if p.DefaultCurrencyCode == "" && len(p.SupportedCurrencies) > 0 {
		p.DefaultCurrencyCode = p.SupportedCurrencies[0]
	}
	return validation.Validate(
		validation.Required("name", p.Name),
		validation.MaxLength("name", p.Name, 200),
		validation.ValidCurrencies("supported_currencies", p.SupportedCurrencies),
	)
}

// CreatePlan handles POST /plans
func (h *Handler) CreatePlan(c *gin.Context) {
	var req businessmodel.Plan
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "invalid plan body")
		return
	}
	if errs := checkPlan(&req); len(errs) > 0 {
		validationFailed(c, "Plan is invalid", errs.Messages())
		return
	}
	req.RepairCurrencies()
	edit := req.EditData()
	if issues := businessmodel.ValidatePricing(edit); len(issues) > 0 {
		validationFailed(c, "Pricing is invalid", issues)
		return
	}

	ctx := c.Request.Context()
	sc := scopeOf(c)
	now := h.now().UTC()
	p := req.Clone()
	p.ID = idgen.WithPrefix("plan_")
	p.TenantID = sc.TenantID
	p.IsActive = true
	p.IsArchived = false
	p.SubscriberCount = 0
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := h.store.Create(ctx, sc, &p); err != nil {
		storeError(c, err)
		return
	}
	v := businessmodel.Version{
		ID:            idgen.WithPrefix("ver_"),
		VersionNumber: "1.0",
		EffectiveDate: now,
		Changelog:     "Initial version",
		CreatedBy:     sc.UserID,
		CreatedAt:     now,
		Tiers:         p.Tiers,
		Features:      p.Features,
		Notifications: p.Notifications,
	}
	if err := h.store.AddVersion(ctx, sc, p.ID, v); err != nil {
		storeError(c, err)
		return
	}
	created, err := h.store.Get(ctx, sc, p.ID)
	if err != nil {
		storeError(c, err)
		return
	}
	h.log(sc).Info("plan created", "plan_id", p.ID)
	h.publish(sc, p.ID, "created")
	h.respondPlan(c, http.StatusCreated, created)
}

// UpdatePlan handles PUT /plans/:id. Only metadata changes; pricing moves
// through new versions.
func (h *Handler) UpdatePlan(c *gin.Context) {
	var req businessmodel.Plan
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "invalid plan body")
		return
	}
	if errs := checkPlan(&req); len(errs) > 0 {
		validationFailed(c, "Plan is invalid", errs.Messages())
		return
	}

	ctx := c.Request.Context()
	sc := scopeOf(c)
	p, err := h.store.Get(ctx, sc, c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	p.Name = req.Name
	p.Description = req.Description
	p.PlanType = req.PlanType
	p.TrialDuration = req.TrialDuration
	p.IsVisible = req.IsVisible
	if len(req.SupportedCurrencies) > 0 {
		p.SupportedCurrencies = req.SupportedCurrencies
		p.DefaultCurrencyCode = req.DefaultCurrencyCode
	}
	p.UpdatedAt = h.now().UTC()
	p.RepairCurrencies()

	if err := h.store.Update(ctx, sc, p); err != nil {
		storeError(c, err)
		return
	}
	h.log(sc).Info("plan updated", "plan_id", p.ID)
	h.publish(sc, p.ID, "updated")
	h.respondPlan(c, http.StatusOK, p)
}

// DeletePlan handles DELETE /plans/:id. Plans with subscribers must be
// archived instead.
func (h *Handler) DeletePlan(c *gin.Context) {
	ctx := c.Request.Context()
	sc := scopeOf(c)
	id := c.Param("id")
	p, err := h.store.Get(ctx, sc, id)
	if err != nil {
		storeError(c, err)
		return
	}
	if p.SubscriberCount > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "plan_in_use",
			"message": "plan has active subscribers; archive it instead",
		})
		return
	}
	if err := h.store.Delete(ctx, sc, id); err != nil {
		storeError(c, err)
		return
	}
	h.log(sc).Info("plan deleted", "plan_id", id)
	h.publish(sc, id, "deleted")
	c.Status(http.StatusNoContent)
}

// DuplicatePlan handles POST /plans/:id/duplicate
func (h *Handler) DuplicatePlan(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "name is required")
		return
	}
	name := validation.SanitizeString(req.Name, 200)

	ctx := c.Request.Context()
	sc := scopeOf(c)
	src, err := h.store.Get(ctx, sc, c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}

	now := h.now().UTC()
	dup := src.Clone()
	dup.ID = idgen.WithPrefix("plan_")
	dup.Name = name
	dup.IsVisible = false
	dup.IsArchived = false
	dup.IsActive = true
	dup.SubscriberCount = 0
	dup.CreatedAt = now
	dup.UpdatedAt = now
	if err := h.store.Create(ctx, sc, &dup); err != nil {
		storeError(c, err)
		return
	}
	v := businessmodel.Version{
		ID:            idgen.WithPrefix("ver_"),
		VersionNumber: "1.0",
		EffectiveDate: now,
		Changelog:     "Copied from " + src.Name,
		CreatedBy:     sc.UserID,
		CreatedAt:     now,
		Tiers:         dup.Tiers,
		Features:      dup.Features,
		Notifications: dup.Notifications,
	}
	if err := h.store.AddVersion(ctx, sc, dup.ID, v); err != nil {
		storeError(c, err)
		return
	}
	created, err := h.store.Get(ctx, sc, dup.ID)
	if err != nil {
		storeError(c, err)
		return
	}
	h.log(sc).Info("plan duplicated", "plan_id", src.ID, "copy_id", dup.ID)
	h.publish(sc, dup.ID, "created")
	h.respondPlan(c, http.StatusCreated, created)
}

// SetVisibility handles PUT /plans/:id/visibility
func (h *Handler) SetVisibility(c *gin.Context) {
	var req struct {
		IsVisible *bool `json:"is_visible"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IsVisible == nil {
		badRequest(c, "invalid_request", "is_visible is required")
		return
	}
	h.patchStatus(c, "visibility_changed", func(p *businessmodel.Plan) { p.IsVisible = *req.IsVisible })
}

// ArchivePlan handles PUT /plans/:id/archive
func (h *Handler) ArchivePlan(c *gin.Context) {
	h.patchStatus(c, "archived", func(p *businessmodel.Plan) {
		p.IsArchived = true
		p.IsActive = false
	})
}

func (h *Handler) patchStatus(c *gin.Context, action string, patch func(*businessmodel.Plan)) {
	ctx := c.Request.Context()
	sc := scopeOf(c)
	p, err := h.store.Get(ctx, sc, c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	patch(p)
	p.UpdatedAt = h.now().UTC()
	if err := h.store.Update(ctx, sc, p); err != nil {
		storeError(c, err)
		return
	}
	h.log(sc).Info("plan status changed", "plan_id", p.ID, "action", action)
	h.publish(sc, p.ID, action)
	h.respondStatus(c, p)
}

// CreateVersion handles POST /plans/edit: the edit buffer becomes the
// plan's next, active version.
func (h *Handler) CreateVersion(c *gin.Context) {
	var e businessmodel.EditPlanData
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c, "invalid_request", "invalid edit body")
		return
	}
	if !validation.IsValidID(e.PlanID) {
		badRequest(c, "invalid_id", "plan_id is required")
		return
	}
	e.RepairCurrencies()
	if issues := h.checkPricing(e); len(issues) > 0 {
		validationFailed(c, "Pricing is invalid", issues)
		return
	}

	ctx := c.Request.Context()
	sc := scopeOf(c)
	p, err := h.store.Get(ctx, sc, e.PlanID)
	if err != nil {
		storeError(c, err)
		return
	}
	versions, err := h.store.Versions(ctx, sc, e.PlanID)
	if err != nil {
		storeError(c, err)
		return
	}
	number := e.NextVersionNumber
	if number == "" {
		current := "1.0"
		if p.ActiveVersion != nil {
			current = p.ActiveVersion.VersionNumber
		}
		number = businessmodel.NextVersionNumber(current)
	}
	for _, v := range versions {
		if v.VersionNumber == number {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "version_exists",
				"message": "version " + number + " already exists",
			})
			return
		}
	}

	now := h.now().UTC()
	effective := e.EffectiveDate
	if effective.IsZero() {
		effective = now
	}
	p.Name = e.Name
	p.Description = e.Description
	p.PlanType = e.PlanType
	p.TrialDuration = e.TrialDuration
	p.IsVisible = e.IsVisible
	p.DefaultCurrencyCode = e.DefaultCurrencyCode
	p.SupportedCurrencies = e.SupportedCurrencies
	p.UpdatedAt = now
	if err := h.store.Update(ctx, sc, p); err != nil {
		storeError(c, err)
		return
	}
	v := businessmodel.Version{
		ID:            idgen.WithPrefix("ver_"),
		VersionNumber: number,
		EffectiveDate: effective,
		Changelog:     e.Changelog,
		CreatedBy:     sc.UserID,
		CreatedAt:     now,
		Tiers:         e.Tiers,
		Features:      e.Features,
		Notifications: e.Notifications,
	}
	if err := h.store.AddVersion(ctx, sc, p.ID, v); err != nil {
		storeError(c, err)
		return
	}
	updated, err := h.store.Get(ctx, sc, p.ID)
	if err != nil {
		storeError(c, err)
		return
	}
	h.log(sc).Info("plan version created", "plan_id", p.ID, "version", number)
	h.publish(sc, p.ID, "version_created")
	h.respondPlan(c, http.StatusCreated, updated)
}

func (h *Handler) checkPricing(e businessmodel.EditPlanData) []string {
	issues := validation.Validate(
		validation.ValidCurrencies("supported_currencies", e.SupportedCurrencies),
	).Messages()
	return append(issues, businessmodel.ValidatePricing(e)...)
}

// ListVersions handles GET /plans/:id/versions
func (h *Handler) ListVersions(c *gin.Context) {
	versions, err := h.store.Versions(c.Request.Context(), scopeOf(c), c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	payload, err := h.render.list(versions, "versions")
	h.respond(c, http.StatusOK, payload, err)
}

// ActivateVersion handles PUT /plan-versions/:id/activate
func (h *Handler) ActivateVersion(c *gin.Context) {
	sc := scopeOf(c)
	p, err := h.store.ActivateVersion(c.Request.Context(), sc, c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	h.log(sc).Info("plan version activated", "plan_id", p.ID, "version_id", c.Param("id"))
	h.publish(sc, p.ID, "version_activated")
	h.respondStatus(c, p)
}

// CalculatePrice handles POST /plans/:id/calculate-price
func (h *Handler) CalculatePrice(c *gin.Context) {
	var q businessmodel.PriceQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		badRequest(c, "invalid_request", "quantity and currency required")
		return
	}
	q.Currency = validation.SanitizeCurrency(q.Currency)

	p, err := h.store.Get(c.Request.Context(), scopeOf(c), c.Param("id"))
	if err != nil {
		storeError(c, err)
		return
	}
	quote, err := businessmodel.Quote(*p, q)
	if err != nil {
		badRequest(c, "invalid_quote", err.Error())
		return
	}
	payload, err := h.render.record(quote, "quote")
	h.respond(c, http.StatusOK, payload, err)
}

// ValidatePricing handles POST /validate-pricing
func (h *Handler) ValidatePricing(c *gin.Context) {
	var e businessmodel.EditPlanData
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c, "invalid_request", "invalid edit body")
		return
	}
	c.JSON(http.StatusOK, h.render.issues(h.checkPricing(e)))
}

// SetEnvironment handles PUT /environment. Nothing is stored; connected
// clients of the tenant are told to switch.
func (h *Handler) SetEnvironment(c *gin.Context) {
	var req struct {
		Environment tenant.Environment `json:"environment" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil ||
		(req.Environment != tenant.EnvLive && req.Environment != tenant.EnvTest) {
		badRequest(c, "invalid_environment", "environment must be live or test")
		return
	}
	sc := scopeOf(c)
	if h.events != nil {
		h.events.BroadcastEnvironmentChanged(sc.TenantID, string(req.Environment))
	}
	h.log(sc).Info("environment change announced", "to", req.Environment)
	c.JSON(http.StatusOK, gin.H{"environment": req.Environment})
}
