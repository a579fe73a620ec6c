package planapi

import (
	"context"
	"errors"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

var (
	ErrVersionNotFound = errors.New("planapi: version not found")
	ErrPlanExists      = errors.New("planapi: plan already exists")
)

// Store persists plans per tenant and environment. Live and test data of
// one tenant never mix.
type Store interface {
	List(ctx context.Context, scope tenant.Context, f businessmodel.Filters) ([]businessmodel.Plan, error)
	Get(ctx context.Context, scope tenant.Context, planID string) (*businessmodel.Plan, error)
	Create(ctx context.Context, scope tenant.Context, p *businessmodel.Plan) error
	Update(ctx context.Context, scope tenant.Context, p *businessmodel.Plan) error
	Delete(ctx context.Context, scope tenant.Context, planID string) error

	// Versions lists a plan's versions, oldest first.
	Versions(ctx context.Context, scope tenant.Context, planID string) ([]businessmodel.Version, error)
	// AddVersion appends v and makes it the active version.
	AddVersion(ctx context.Context, scope tenant.Context, planID string, v businessmodel.Version) error
	// ActivateVersion makes versionID the only active version of its plan
	// and returns the plan as it now reads.
	ActivateVersion(ctx context.Context, scope tenant.Context, versionID string) (*businessmodel.Plan, error)
}
