package businessmodel

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// fakeAPI answers with canned bodies and counts calls per endpoint.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	list      func(ctx context.Context, tc tenant.Context, f Filters) (json.RawMessage, error)
	get       func(planID string) (json.RawMessage, error)
	edit      func(planID string) (json.RawMessage, error)
	newVer    func(e EditPlanData) (json.RawMessage, error)
	create    func(p Plan) (json.RawMessage, error)
	update    func(planID string, p Plan) (json.RawMessage, error)
	del       func(planID string) error
	dup       func(planID, name string) (json.RawMessage, error)
	visible   func(planID string, visible bool) (json.RawMessage, error)
	archive   func(planID string) (json.RawMessage, error)
	versions  func(planID string) (json.RawMessage, error)
	activate  func(versionID string) (json.RawMessage, error)
	calculate func(planID string, q PriceQuery) (json.RawMessage, error)
	validate  func(e EditPlanData) (json.RawMessage, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int)}
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func (f *fakeAPI) ListPlans(ctx context.Context, tc tenant.Context, filters Filters) (json.RawMessage, error) {
	f.count("list")
	if f.list == nil {
		return raw(`[]`), nil
	}
	return f.list(ctx, tc, filters)
}

func (f *fakeAPI) GetPlan(_ context.Context, _ tenant.Context, planID string) (json.RawMessage, error) {
	f.count("get")
	return f.get(planID)
}

func (f *fakeAPI) GetPlanForEdit(_ context.Context, _ tenant.Context, planID string) (json.RawMessage, error) {
	f.count("edit")
	return f.edit(planID)
}

func (f *fakeAPI) UpdatePlanAsNewVersion(_ context.Context, _ tenant.Context, e EditPlanData) (json.RawMessage, error) {
	f.count("new_version")
	return f.newVer(e)
}

func (f *fakeAPI) CreatePlan(_ context.Context, _ tenant.Context, p Plan) (json.RawMessage, error) {
	f.count("create")
	return f.create(p)
}

func (f *fakeAPI) UpdatePlan(_ context.Context, _ tenant.Context, planID string, p Plan) (json.RawMessage, error) {
	f.count("update")
	return f.update(planID, p)
}

func (f *fakeAPI) DeletePlan(_ context.Context, _ tenant.Context, planID string) error {
	f.count("delete")
	if f.del == nil {
		return nil
	}
	return f.del(planID)
}

func (f *fakeAPI) DuplicatePlan(_ context.Context, _ tenant.Context, planID, name string) (json.RawMessage, error) {
	f.count("duplicate")
	return f.dup(planID, name)
}

func (f *fakeAPI) SetPlanVisibility(_ context.Context, _ tenant.Context, planID string, visible bool) (json.RawMessage, error) {
	f.count("visibility")
	if f.visible == nil {
		return raw(`{"success":true}`), nil
	}
	return f.visible(planID, visible)
}

func (f *fakeAPI) ArchivePlan(_ context.Context, _ tenant.Context, planID string) (json.RawMessage, error) {
	f.count("archive")
	if f.archive == nil {
		return raw(`{"success":true}`), nil
	}
	return f.archive(planID)
}

func (f *fakeAPI) ListVersions(_ context.Context, _ tenant.Context, planID string) (json.RawMessage, error) {
	f.count("versions")
	return f.versions(planID)
}

func (f *fakeAPI) ActivateVersion(_ context.Context, _ tenant.Context, versionID string) (json.RawMessage, error) {
	f.count("activate")
	if f.activate == nil {
		return raw(`{"success":true}`), nil
	}
	return f.activate(versionID)
}

func (f *fakeAPI) CalculatePrice(_ context.Context, _ tenant.Context, planID string, q PriceQuery) (json.RawMessage, error) {
	f.count("calculate")
	return f.calculate(planID, q)
}

func (f *fakeAPI) ValidatePricing(_ context.Context, _ tenant.Context, e EditPlanData) (json.RawMessage, error) {
	f.count("validate")
	if f.validate == nil {
		return raw(`{"valid":true}`), nil
	}
	return f.validate(e)
}

var _ API = (*fakeAPI)(nil)

// toastRecorder collects notifications.
type toastRecorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *toastRecorder) Notify(_ context.Context, t Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
}

func (r *toastRecorder) messages(level ToastLevel) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, t := range r.toasts {
		if t.Level == level {
			out = append(out, t.Message)
		}
	}
	return out
}
