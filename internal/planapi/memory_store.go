package planapi

import (
	"context"
	"slices"
	"sync"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// MemoryStore is an in-memory plan store for demo/development.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]*bucket // by tenant.Context.Key()
}

type bucket struct {
	plans    map[string]*businessmodel.Plan
	order    []string                           // newest first
	versions map[string][]businessmodel.Version // by plan ID
}

// NewMemoryStore creates a new in-memory plan store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket)}
}

func (m *MemoryStore) bucket(scope tenant.Context, create bool) *bucket {
	b, ok := m.buckets[scope.Key()]
	if !ok && create {
		b = &bucket{
			plans:    make(map[string]*businessmodel.Plan),
			versions: make(map[string][]businessmodel.Version),
		}
		m.buckets[scope.Key()] = b
	}
	return b
}

// withActive returns a copy of p carrying its active version.
func (b *bucket) withActive(p *businessmodel.Plan) businessmodel.Plan {
	out := p.Clone()
	for _, v := range b.versions[p.ID] {
		if v.IsActive {
			av := v.Clone()
			out.ActiveVersion = &av
			break
		}
	}
	return out
}

func (m *MemoryStore) List(_ context.Context, scope tenant.Context, f businessmodel.Filters) ([]businessmodel.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := m.bucket(scope, false)
	if b == nil {
		return []businessmodel.Plan{}, nil
	}
	out := make([]businessmodel.Plan, 0, len(b.order))
	for _, id := range b.order {
		p := b.plans[id]
		if f.Match(*p) {
			out = append(out, b.withActive(p))
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, scope tenant.Context, planID string) (*businessmodel.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := m.bucket(scope, false)
	if b == nil {
		return nil, businessmodel.ErrPlanNotFound
	}
	p, ok := b.plans[planID]
	if !ok {
		return nil, businessmodel.ErrPlanNotFound
	}
	out := b.withActive(p)
	return &out, nil
}

func (m *MemoryStore) Create(_ context.Context, scope tenant.Context, p *businessmodel.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(scope, true)
	if _, exists := b.plans[p.ID]; exists {
		return ErrPlanExists
	}
	cp := p.Clone()
	cp.ActiveVersion = nil
	b.plans[p.ID] = &cp
	b.order = slices.Insert(b.order, 0, p.ID)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, scope tenant.Context, p *businessmodel.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(scope, false)
	if b == nil {
		return businessmodel.ErrPlanNotFound
	}
	if _, ok := b.plans[p.ID]; !ok {
		return businessmodel.ErrPlanNotFound
	}
	cp := p.Clone()
	cp.ActiveVersion = nil
	b.plans[p.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, scope tenant.Context, planID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(scope, false)
	if b == nil {
		return businessmodel.ErrPlanNotFound
	}
	if _, ok := b.plans[planID]; !ok {
		return businessmodel.ErrPlanNotFound
	}
	delete(b.plans, planID)
	delete(b.versions, planID)
	b.order = slices.DeleteFunc(b.order, func(id string) bool { return id == planID })
	return nil
}

func (m *MemoryStore) Versions(_ context.Context, scope tenant.Context, planID string) ([]businessmodel.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := m.bucket(scope, false)
	if b == nil {
		return nil, businessmodel.ErrPlanNotFound
	}
	if _, ok := b.plans[planID]; !ok {
		return nil, businessmodel.ErrPlanNotFound
	}
	versions := b.versions[planID]
	out := make([]businessmodel.Version, len(versions))
	for i, v := range versions {
		out[i] = v.Clone()
	}
	return out, nil
}

func (m *MemoryStore) AddVersion(_ context.Context, scope tenant.Context, planID string, v businessmodel.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(scope, false)
	if b == nil {
		return businessmodel.ErrPlanNotFound
	}
	p, ok := b.plans[planID]
	if !ok {
		return businessmodel.ErrPlanNotFound
	}
	versions := b.versions[planID]
	for i := range versions {
		versions[i].IsActive = false
	}
	v = v.Clone()
	v.PlanID = planID
	v.IsActive = true
	b.versions[planID] = append(versions, v)
	applyVersion(p, v)
	return nil
}

func (m *MemoryStore) ActivateVersion(_ context.Context, scope tenant.Context, versionID string) (*businessmodel.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(scope, false)
	if b == nil {
		return nil, ErrVersionNotFound
	}
	for planID, versions := range b.versions {
		i := slices.IndexFunc(versions, func(v businessmodel.Version) bool { return v.ID == versionID })
		if i < 0 {
			continue
		}
		for j := range versions {
			versions[j].IsActive = j == i
		}
		p := b.plans[planID]
		applyVersion(p, versions[i])
		out := b.withActive(p)
		return &out, nil
	}
	return nil, ErrVersionNotFound
}

// applyVersion mirrors a version's pricing onto its plan.
func applyVersion(p *businessmodel.Plan, v businessmodel.Version) {
	c := v.Clone()
	p.Tiers = c.Tiers
	p.Features = c.Features
	p.Notifications = c.Notifications
}

// Compile-time check
var _ Store = (*MemoryStore)(nil)
