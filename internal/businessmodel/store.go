package businessmodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/cache"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/logging"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/metrics"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// Default cache lifetimes.
const (
	DefaultListTTL   = 5 * time.Minute
	DefaultDetailTTL = 10 * time.Minute
)

// Option configures a Store.
type Option func(*Store)

// WithCache replaces the default in-memory cache.
func WithCache(c cache.Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithNotifier sets where user-facing toasts go.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTTL overrides the list and detail cache lifetimes.
func WithTTL(list, detail time.Duration) Option {
	return func(s *Store) {
		s.listTTL = list
		s.detailTTL = detail
	}
}

// Store holds the plans of the current tenant and environment. It is
// safe for concurrent use.
//
// Reads (Load*) record failures in Err and return empty results.
// CreatePlan, UpdatePlan and DeletePlan also return their error.
// Every successful mutation flushes the whole cache.
type Store struct {
	api       API
	tenants   tenant.Source
	cache     cache.Cache
	notifier  Notifier
	logger    *slog.Logger
	listTTL   time.Duration
	detailTTL time.Duration

	group singleflight.Group

	// flushMu orders cache fills against flushes: fills hold it shared
	// and check epoch, flushes hold it exclusively and bump epoch.
	flushMu sync.RWMutex

	mu         sync.RWMutex
	plans      []Plan
	selected   *Plan
	versions   []Version
	edit       *EditPlanData
	err        error
	errMsg     string
	filters    Filters
	loading    int
	generation uint64 // bumped by ClearAllData
	epoch      uint64 // bumped by every cache flush
	listSeq    uint64
	appliedSeq uint64
	planSeq    map[string]uint64 // plan id -> bumped by detail loads and local writes
	inflight   map[string]int    // flight key -> waiting callers
}

// NewStore creates a store that talks to api on behalf of the scope
// returned by tenants.
func NewStore(api API, tenants tenant.Source, opts ...Option) *Store {
	s := &Store{
		api:       api,
		tenants:   tenants,
		cache:     cache.NewMemory(),
		notifier:  LogNotifier{},
		logger:    slog.Default(),
		listTTL:   DefaultListTTL,
		detailTTL: DefaultDetailTTL,
		planSeq:   make(map[string]uint64),
		inflight:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// scope snapshots the tenant context and the store generation together.
type scope struct {
	tc    tenant.Context
	gen   uint64
	epoch uint64
}

func (s *Store) scope() scope {
	tc := s.tenants.Current()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scope{tc: tc, gen: s.generation, epoch: s.epoch}
}

func (s *Store) log(tc tenant.Context) *slog.Logger {
	return logging.WithTenant(s.logger, tc.TenantID, string(tc.Environment()))
}

func listKey(tc tenant.Context, f Filters) string {
	return "plans:list:" + tc.Key() + "?" + f.Query().Encode()
}

func detailKey(tc tenant.Context, planID string) string {
	return "plans:detail:" + tc.Key() + ":" + planID
}

func versionsKey(tc tenant.Context, planID string) string {
	return "plans:versions:" + tc.Key() + ":" + planID
}

// ---------------------------------------------------------------------------
// Coalescing
// ---------------------------------------------------------------------------

// coalesce runs fn once per key among concurrent callers. fn runs detached
// from ctx so one caller giving up does not fail the others; a caller whose
// ctx ends stops waiting and gets ctx.Err().
func coalesce[T any](ctx context.Context, s *Store, key string, fn func(context.Context) (T, error)) (T, error) {
	s.mu.Lock()
	joined := s.inflight[key] > 0
	s.inflight[key]++
	s.mu.Unlock()
	if joined {
		metrics.CoalescedLoadsTotal.Inc()
	}

	defer func() {
		s.mu.Lock()
		if n, ok := s.inflight[key]; ok {
			if n <= 1 {
				delete(s.inflight, key)
			} else {
				s.inflight[key] = n - 1
			}
		}
		s.mu.Unlock()
	}()

	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Store) beginLoad() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

func (s *Store) endLoad() {
	s.mu.Lock()
	if s.loading > 0 {
		s.loading--
	}
	s.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

func cached[T any](ctx context.Context, s *Store, kind, key string) (T, bool) {
	v, err := cache.GetJSON[T](ctx, s.cache, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Debug("plan cache read failed", "key", key, "error", err)
		}
		metrics.CacheLookup(kind, false)
		return v, false
	}
	metrics.CacheLookup(kind, true)
	return v, true
}

// fill stores v unless the cache was flushed after the fetch began.
func (s *Store) fill(ctx context.Context, sc scope, key string, v any, ttl time.Duration) {
	s.flushMu.RLock()
	defer s.flushMu.RUnlock()
	s.mu.RLock()
	current := s.epoch == sc.epoch
	s.mu.RUnlock()
	if !current {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, v, ttl); err != nil {
		s.logger.Debug("plan cache write failed", "key", key, "error", err)
	}
}

// flush drops every cached entry. reason is "mutation" or "clear".
func (s *Store) flush(ctx context.Context, reason string, reset func()) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	s.mu.Lock()
	s.epoch++
	if reset != nil {
		reset()
	}
	s.mu.Unlock()
	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Warn("plan cache flush failed", "reason", reason, "error", err)
	}
	metrics.CacheFlushesTotal.WithLabelValues(reason).Inc()
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// report counts and logs a failed operation. It returns the message shown
// to users.
func (s *Store) report(sc scope, op string, err error, fallback string) string {
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	s.log(sc.tc).Warn("plan store operation failed", "operation", op, "error", err)
	return Message(err, fallback)
}

// fail records err as the store's error unless the scope it belongs to has
// been cleared. It returns the message shown to users.
func (s *Store) fail(sc scope, op string, err error, fallback string) string {
	msg := s.report(sc, op, err, fallback)

	s.mu.Lock()
	if s.generation == sc.gen {
		s.err = err
		s.errMsg = msg
	}
	s.mu.Unlock()
	return msg
}

func (s *Store) notifyError(ctx context.Context, title, msg string) {
	s.notifier.Notify(ctx, Toast{Level: ToastError, Title: title, Message: msg})
}

func (s *Store) notifySuccess(ctx context.Context, title, msg string) {
	s.notifier.Notify(ctx, Toast{Level: ToastSuccess, Title: title, Message: msg})
}

// failMutation records and announces a failed user-triggered mutation.
func (s *Store) failMutation(ctx context.Context, sc scope, op, title string, err error, fallback string) {
	msg := s.fail(sc, op, err, fallback)
	s.notifyError(ctx, title, msg)
}

// ---------------------------------------------------------------------------
// State helpers (callers hold s.mu)
// ---------------------------------------------------------------------------

func (s *Store) setPlansLocked(plans []Plan) {
	s.plans = plans
	metrics.LoadedPlans.Set(float64(len(plans)))
	if s.selected == nil {
		return
	}
	if i := s.indexLocked(s.selected.ID); i >= 0 {
		p := s.plans[i].Clone()
		s.selected = &p
	}
}

// touchLocked marks a newer view of planID. Detail replies started before
// the returned sequence are discarded.
func (s *Store) touchLocked(planID string) uint64 {
	s.planSeq[planID]++
	return s.planSeq[planID]
}

func (s *Store) indexLocked(planID string) int {
	return slices.IndexFunc(s.plans, func(p Plan) bool { return p.ID == planID })
}

// replaceLocked patches p into the list and the selection wherever its id
// already appears.
func (s *Store) replaceLocked(p Plan) {
	if i := s.indexLocked(p.ID); i >= 0 {
		s.plans[i] = p.Clone()
	}
	if s.selected != nil && s.selected.ID == p.ID {
		c := p.Clone()
		s.selected = &c
	}
}

func (s *Store) prependLocked(p Plan) {
	s.touchLocked(p.ID)
	if i := s.indexLocked(p.ID); i >= 0 {
		s.plans = slices.Delete(s.plans, i, i+1)
	}
	s.plans = slices.Insert(s.plans, 0, p.Clone())
	metrics.LoadedPlans.Set(float64(len(s.plans)))
	if s.selected != nil && s.selected.ID == p.ID {
		c := p.Clone()
		s.selected = &c
	}
}

func (s *Store) removeLocked(planID string) {
	s.touchLocked(planID)
	s.plans = slices.DeleteFunc(s.plans, func(p Plan) bool { return p.ID == planID })
	metrics.LoadedPlans.Set(float64(len(s.plans)))
	if s.selected != nil && s.selected.ID == planID {
		s.selected = nil
	}
	if len(s.versions) > 0 && s.versions[0].PlanID == planID {
		s.versions = nil
	}
	if s.edit != nil && s.edit.PlanID == planID {
		s.edit = nil
	}
}

func (s *Store) clearErrLocked() {
	s.err = nil
	s.errMsg = ""
}

// apply runs fn under the write lock if the scope is still current.
func (s *Store) apply(sc scope, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != sc.gen {
		metrics.StaleResponsesTotal.Inc()
		return false
	}
	fn()
	return true
}

// ---------------------------------------------------------------------------
// Loads
// ---------------------------------------------------------------------------

// LoadPlans replaces the plan list with the plans of the current tenant and
// environment that match f. Concurrent calls for the same scope and filters
// share one request. On failure the list is emptied and the error recorded;
// a cancelled ctx is not a failure. A response older than one already
// applied is discarded.
func (s *Store) LoadPlans(ctx context.Context, f Filters) []Plan {
	sc := s.scope()
	if !sc.tc.Valid() {
		s.logger.Debug("skipping plan load: no tenant selected")
		return nil
	}

	s.mu.Lock()
	s.listSeq++
	seq := s.listSeq
	s.filters = f
	s.mu.Unlock()

	s.beginLoad()
	defer s.endLoad()

	key := listKey(sc.tc, f)
	if plans, ok := cached[[]Plan](ctx, s, "list", key); ok {
		return s.applyList(sc, seq, plans)
	}

	flight := fmt.Sprintf("list|%d|%s", sc.gen, key)
	plans, err := coalesce(ctx, s, flight, func(ctx context.Context) ([]Plan, error) {
		raw, err := s.api.ListPlans(ctx, sc.tc, f)
		if err != nil {
			return nil, fmt.Errorf("list plans: %w", err)
		}
		plans, ok := DecodePlans(raw)
		if !ok {
			return nil, fmt.Errorf("list plans: %w", ErrUnexpectedShape)
		}
		s.fill(ctx, sc, key, plans, s.listTTL)
		return plans, nil
	})
	if err != nil {
		if IsAborted(err) {
			return nil
		}
		msg := s.report(sc, "load_plans", err, "Failed to load plans")
		s.apply(sc, func() {
			if seq < s.appliedSeq {
				metrics.StaleResponsesTotal.Inc()
				return
			}
			s.appliedSeq = seq
			s.err = err
			s.errMsg = msg
			s.setPlansLocked(nil)
		})
		return nil
	}
	return s.applyList(sc, seq, plans)
}

func (s *Store) applyList(sc scope, seq uint64, plans []Plan) []Plan {
	out := make([]Plan, len(plans))
	for i, p := range plans {
		out[i] = p.Clone()
	}
	fresh := false
	s.apply(sc, func() {
		if seq < s.appliedSeq {
			metrics.StaleResponsesTotal.Inc()
			return
		}
		fresh = true
		s.appliedSeq = seq
		s.clearErrLocked()
		s.setPlansLocked(out)
	})
	if !fresh {
		return nil
	}
	return slices.Clone(out)
}

// LoadPlanDetails fetches one plan, makes it the selection and patches the
// list entry with the same id. It returns nil on failure. A reply that
// started before a later load or write of the same plan is discarded in
// favour of the local copy.
func (s *Store) LoadPlanDetails(ctx context.Context, planID string) *Plan {
	sc := s.scope()
	if !sc.tc.Valid() || planID == "" {
		return nil
	}

	s.mu.Lock()
	seq := s.touchLocked(planID)
	s.mu.Unlock()

	s.beginLoad()
	defer s.endLoad()

	key := detailKey(sc.tc, planID)
	plan, ok := cached[Plan](ctx, s, "detail", key)
	if !ok {
		var err error
		flight := fmt.Sprintf("detail|%d|%s", sc.gen, key)
		plan, err = coalesce(ctx, s, flight, func(ctx context.Context) (Plan, error) {
			raw, err := s.api.GetPlan(ctx, sc.tc, planID)
			if err != nil {
				return Plan{}, fmt.Errorf("get plan %s: %w", planID, err)
			}
			p, ok := DecodePlan(raw)
			if !ok {
				return Plan{}, fmt.Errorf("get plan %s: %w", planID, ErrUnexpectedShape)
			}
			s.fill(ctx, sc, key, p, s.detailTTL)
			return p, nil
		})
		if err != nil {
			if !IsAborted(err) {
				s.fail(sc, "load_plan_details", err, "Failed to load plan details")
			}
			return nil
		}
	}

	var (
		current Plan
		stale   bool
	)
	applied := s.apply(sc, func() {
		if s.planSeq[planID] != seq {
			metrics.StaleResponsesTotal.Inc()
			stale = true
			current, _ = s.localPlanLocked(planID)
			return
		}
		c := plan.Clone()
		s.selected = &c
		s.replaceLocked(plan)
		s.clearErrLocked()
	})
	switch {
	case !applied:
		return nil
	case stale:
		s.log(sc.tc).Debug("discarding stale plan details", "plan_id", planID)
		if current.ID == "" {
			return nil
		}
		return &current
	}
	out := plan.Clone()
	return &out
}

// FetchPlan is LoadPlanDetails.
func (s *Store) FetchPlan(ctx context.Context, planID string) *Plan {
	return s.LoadPlanDetails(ctx, planID)
}

// LoadPlanForEdit fetches the edit projection of a plan, fills in a zero
// price for every supported currency a line item lacks, and holds it as
// the edit buffer.
func (s *Store) LoadPlanForEdit(ctx context.Context, planID string) *EditPlanData {
	sc := s.scope()
	if !sc.tc.Valid() || planID == "" {
		return nil
	}

	s.beginLoad()
	defer s.endLoad()

	raw, err := s.api.GetPlanForEdit(ctx, sc.tc, planID)
	if err != nil {
		if !IsAborted(err) {
			s.fail(sc, "load_plan_for_edit", fmt.Errorf("get plan %s for edit: %w", planID, err), "Failed to load plan for editing")
		}
		return nil
	}
	edit, ok := DecodeEditData(raw)
	if !ok {
		s.fail(sc, "load_plan_for_edit", fmt.Errorf("get plan %s for edit: %w", planID, ErrUnexpectedShape), "Failed to load plan for editing")
		return nil
	}
	edit.RepairCurrencies()

	applied := s.apply(sc, func() {
		c := edit.Clone()
		s.edit = &c
		s.clearErrLocked()
	})
	if !applied {
		return nil
	}
	return &edit
}

// LoadVersions fetches every version of a plan and holds them as the
// version list that ActivatePlanVersion works on.
func (s *Store) LoadVersions(ctx context.Context, planID string) []Version {
	sc := s.scope()
	if !sc.tc.Valid() || planID == "" {
		return nil
	}

	s.beginLoad()
	defer s.endLoad()

	key := versionsKey(sc.tc, planID)
	versions, ok := cached[[]Version](ctx, s, "versions", key)
	if !ok {
		raw, err := s.api.ListVersions(ctx, sc.tc, planID)
		if err != nil {
			if !IsAborted(err) {
				s.fail(sc, "load_versions", fmt.Errorf("list versions of %s: %w", planID, err), "Failed to load plan versions")
			}
			return nil
		}
		versions, ok = DecodeVersions(raw)
		if !ok {
			s.fail(sc, "load_versions", fmt.Errorf("list versions of %s: %w", planID, ErrUnexpectedShape), "Failed to load plan versions")
			return nil
		}
		for i := range versions {
			if versions[i].PlanID == "" {
				versions[i].PlanID = planID
			}
		}
		s.fill(ctx, sc, key, versions, s.detailTTL)
	}

	applied := s.apply(sc, func() {
		s.versions = cloneVersions(versions)
		s.clearErrLocked()
	})
	if !applied {
		return nil
	}
	return cloneVersions(versions)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// CalculatePrice quotes planID for q. When the server's reply cannot be
// read, the quote is computed from the locally held plan.
func (s *Store) CalculatePrice(ctx context.Context, planID string, q PriceQuery) (*PriceQuote, error) {
	sc := s.scope()
	if !sc.tc.Valid() {
		return nil, tenant.ErrNoTenant
	}
	raw, err := s.api.CalculatePrice(ctx, sc.tc, planID, q)
	if err != nil {
		return nil, fmt.Errorf("calculate price for %s: %w", planID, err)
	}
	if quote, ok := DecodeQuote(raw); ok && quote.Currency != "" {
		if quote.PlanID == "" {
			quote.PlanID = planID
		}
		return &quote, nil
	}

	s.log(sc.tc).Debug("unrecognized price quote, computing locally", "plan_id", planID)
	plan, ok := s.localPlan(planID)
	if !ok {
		return nil, fmt.Errorf("calculate price for %s: %w", planID, ErrUnexpectedShape)
	}
	quote, err := Quote(plan, q)
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *Store) localPlan(planID string) (Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localPlanLocked(planID)
}

func (s *Store) localPlanLocked(planID string) (Plan, bool) {
	if s.selected != nil && s.selected.ID == planID {
		return s.selected.Clone(), true
	}
	if i := s.indexLocked(planID); i >= 0 {
		return s.plans[i].Clone(), true
	}
	return Plan{}, false
}

// ValidatePricing checks e locally and, when that passes, asks the server.
// It returns the problems found; an empty result means the pricing is valid.
func (s *Store) ValidatePricing(ctx context.Context, e EditPlanData) ([]string, error) {
	e = e.Clone()
	e.RepairCurrencies()
	if issues := ValidatePricing(e); len(issues) > 0 {
		return issues, nil
	}

	sc := s.scope()
	if !sc.tc.Valid() {
		return nil, tenant.ErrNoTenant
	}
	raw, err := s.api.ValidatePricing(ctx, sc.tc, e)
	if err != nil {
		if details := ValidationDetails(err); len(details) > 0 {
			return details, nil
		}
		return nil, fmt.Errorf("validate pricing: %w", err)
	}
	issues, valid := DecodeIssues(raw)
	if valid {
		return nil, nil
	}
	if len(issues) == 0 {
		issues = []string{"pricing is invalid"}
	}
	return issues, nil
}

// Select makes the listed plan with planID the selection. It returns nil
// and clears the selection when the plan is not listed.
func (s *Store) Select(planID string) *Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(planID)
	if i < 0 {
		s.selected = nil
		return nil
	}
	p := s.plans[i].Clone()
	s.selected = &p
	out := p.Clone()
	return &out
}

// ClearEditData drops the edit buffer.
func (s *Store) ClearEditData() {
	s.mu.Lock()
	s.edit = nil
	s.mu.Unlock()
}

// Plans returns a copy of the plan list.
func (s *Store) Plans() []Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Plan, len(s.plans))
	for i, p := range s.plans {
		out[i] = p.Clone()
	}
	return out
}

// Selected returns a copy of the selected plan, or nil.
func (s *Store) Selected() *Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	p := s.selected.Clone()
	return &p
}

// Versions returns a copy of the version list.
func (s *Store) Versions() []Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneVersions(s.versions)
}

// EditData returns a copy of the edit buffer, or nil.
func (s *Store) EditData() *EditPlanData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.edit == nil {
		return nil
	}
	e := s.edit.Clone()
	return &e
}

// Err returns the last recorded error.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ErrorMessage returns the last recorded error as shown to users.
func (s *Store) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Loading reports whether a load is running.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// InFlight returns the number of distinct requests callers are waiting on.
func (s *Store) InFlight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inflight)
}

// ---------------------------------------------------------------------------
// Scope changes
// ---------------------------------------------------------------------------

// ClearAllData empties the list, selection, versions, edit buffer, error,
// cache and in-flight registry. Responses to requests issued before the
// call are discarded when they arrive.
func (s *Store) ClearAllData(ctx context.Context) {
	s.flush(ctx, "clear", func() {
		s.generation++
		s.plans = nil
		s.selected = nil
		s.versions = nil
		s.edit = nil
		s.planSeq = make(map[string]uint64)
		s.clearErrLocked()
		for key := range s.inflight {
			s.group.Forget(key)
		}
		s.inflight = make(map[string]int)
	})
	metrics.LoadedPlans.Set(0)
	s.logger.Debug("plan store cleared")
}

// Subscriber is the part of tenant.Provider that Watch needs.
type Subscriber interface {
	Subscribe(fn tenant.Listener) (unsubscribe func())
}

// Watch clears the store whenever the tenant or environment changes. It
// returns a function that stops watching.
func (s *Store) Watch(sub Subscriber) func() {
	return sub.Subscribe(func(prev, next tenant.Context) {
		s.logger.Info("tenant scope changed, clearing plan data",
			"from", prev.Key(),
			"to", next.Key(),
		)
		s.ClearAllData(context.Background())
	})
}

func cloneVersions(in []Version) []Version {
	if in == nil {
		return nil
	}
	out := make([]Version, len(in))
	for i, v := range in {
		out[i] = v.Clone()
	}
	return out
}
