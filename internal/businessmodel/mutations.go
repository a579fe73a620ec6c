package businessmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// mutation starts a user-triggered write. ok is false when no tenant is
// selected, in which case the failure has been recorded and announced.
func (s *Store) mutation(ctx context.Context, op, title string) (scope, bool) {
	sc := s.scope()
	if !sc.tc.Valid() {
		s.failMutation(ctx, sc, op, title, tenant.ErrNoTenant, "No tenant selected")
		return sc, false
	}
	return sc, true
}

// decodeMutated reads the plan a write returned. When the reply carries no
// recognizable plan, ok is false and the caller falls back to local state.
func (s *Store) decodeMutated(sc scope, op string, raw json.RawMessage) (Plan, bool) {
	p, ok := DecodePlan(raw)
	if !ok {
		s.log(sc.tc).Debug("write returned no plan", "operation", op, "bytes", len(raw))
	}
	return p, ok
}

// UpdatePlanAsNewVersion submits e as the next version of its plan, then
// reloads the list and drops the edit buffer. When the server rejects the
// pricing with a list of problems, each one is announced on its own.
func (s *Store) UpdatePlanAsNewVersion(ctx context.Context, e EditPlanData) bool {
	const op, title = "update_plan_as_new_version", "Update failed"
	sc, ok := s.mutation(ctx, op, title)
	if !ok {
		return false
	}

	e = e.Clone()
	e.RepairCurrencies()
	if e.NextVersionNumber == "" {
		e.NextVersionNumber = NextVersionNumber(e.CurrentVersionNumber)
	}

	raw, err := s.api.UpdatePlanAsNewVersion(ctx, sc.tc, e)
	if err == nil {
		if issues, valid := DecodeIssues(raw); !valid && len(issues) > 0 {
			err = &APIError{Status: http.StatusUnprocessableEntity, Message: "validation failed", Details: issues}
		}
	}
	if err != nil {
		if IsAborted(err) {
			return false
		}
		if details := ValidationDetails(err); len(details) > 0 {
			s.fail(sc, op, err, "Failed to update plan")
			for _, d := range details {
				s.notifyError(ctx, "Validation failed", d)
			}
			return false
		}
		s.failMutation(ctx, sc, op, title, fmt.Errorf("failed to update plan %s: %w", e.PlanID, err), "Failed to update plan")
		return false
	}

	s.log(sc.tc).Info("plan version created", "plan_id", e.PlanID, "version", e.NextVersionNumber)
	s.flush(ctx, "mutation", func() {
		if s.generation == sc.gen {
			s.touchLocked(e.PlanID)
			s.edit = nil
		}
	})
	s.notifySuccess(ctx, "Plan updated", fmt.Sprintf("Version %s created", e.NextVersionNumber))

	s.reload(ctx)
	return true
}

// CreatePlan creates p and puts it at the front of the list. The returned
// plan is nil when the reply could not be read; the list is then reloaded.
func (s *Store) CreatePlan(ctx context.Context, p Plan) (*Plan, error) {
	const op, title = "create_plan", "Create failed"
	sc, ok := s.mutation(ctx, op, title)
	if !ok {
		return nil, tenant.ErrNoTenant
	}

	p = p.Clone()
	p.RepairCurrencies()
	raw, err := s.api.CreatePlan(ctx, sc.tc, p)
	if err != nil {
		err = fmt.Errorf("create plan: %w", err)
		if !IsAborted(err) {
			s.failMutation(ctx, sc, op, title, err, "Failed to create plan")
		}
		return nil, err
	}

	created, ok := s.decodeMutated(sc, op, raw)
	s.flush(ctx, "mutation", func() {
		if ok && s.generation == sc.gen {
			s.prependLocked(created)
			s.clearErrLocked()
		}
	})
	s.notifySuccess(ctx, "Plan created", p.Name)
	if !ok {
		s.reload(ctx)
		return nil, nil
	}
	s.log(sc.tc).Info("plan created", "plan_id", created.ID)
	out := created.Clone()
	return &out, nil
}

// UpdatePlan replaces the plan's metadata and patches the list and the
// selection in place.
func (s *Store) UpdatePlan(ctx context.Context, planID string, p Plan) (*Plan, error) {
	const op, title = "update_plan", "Update failed"
	sc, ok := s.mutation(ctx, op, title)
	if !ok {
		return nil, tenant.ErrNoTenant
	}

	p = p.Clone()
	p.ID = planID
	p.RepairCurrencies()
	raw, err := s.api.UpdatePlan(ctx, sc.tc, planID, p)
	if err != nil {
		err = fmt.Errorf("update plan %s: %w", planID, err)
		if !IsAborted(err) {
			s.failMutation(ctx, sc, op, title, err, "Failed to update plan")
		}
		return nil, err
	}

	updated, ok := s.decodeMutated(sc, op, raw)
	if !ok {
		updated = p
	}
	s.flush(ctx, "mutation", func() {
		if s.generation == sc.gen {
			s.touchLocked(planID)
			s.replaceLocked(updated)
			s.clearErrLocked()
		}
	})
	s.log(sc.tc).Info("plan updated", "plan_id", planID)
	s.notifySuccess(ctx, "Plan updated", updated.Name)
	out := updated.Clone()
	return &out, nil
}

// DeletePlan deletes a plan and removes it from the list, the selection,
// the version list and the edit buffer.
func (s *Store) DeletePlan(ctx context.Context, planID string) error {
	const op, title = "delete_plan", "Delete failed"
	sc, ok := s.mutation(ctx, op, title)
	if !ok {
		return tenant.ErrNoTenant
	}

	if err := s.api.DeletePlan(ctx, sc.tc, planID); err != nil {
		err = fmt.Errorf("delete plan %s: %w", planID, err)
		if !IsAborted(err) {
			s.failMutation(ctx, sc, op, title, err, "Failed to delete plan")
		}
		return err
	}

	s.flush(ctx, "mutation", func() {
		if s.generation == sc.gen {
			s.removeLocked(planID)
			s.clearErrLocked()
		}
	})
	s.log(sc.tc).Info("plan deleted", "plan_id", planID)
	s.notifySuccess(ctx, "Plan deleted", "")
	return nil
}

// DuplicatePlan copies a plan under a new id and name and puts the copy at
// the front of the list. It returns nil on failure.
func (s *Store) DuplicatePlan(ctx context.Context, planID, name string) *Plan {
	const op, title = "duplicate_plan", "Duplicate failed"
	sc, ok := s.mutation(ctx, op, title)
	if !ok {
		return nil
	}

	raw, err := s.api.DuplicatePlan(ctx, sc.tc, planID, name)
	if err != nil {
		if !IsAborted(err) {
			s.failMutation(ctx, sc, op, title, fmt.Errorf("duplicate plan %s: %w", planID, err), "Failed to duplicate plan")
		}
		return nil
	}

	dup, ok := s.decodeMutated(sc, op, raw)
	s.flush(ctx, "mutation", func() {
		if ok && s.generation == sc.gen {
			s.prependLocked(dup)
			s.clearErrLocked()
		}
	})
	s.notifySuccess(ctx, "Plan duplicated", name)
	if !ok {
		s.reload(ctx)
		return nil
	}
	s.log(sc.tc).Info("plan duplicated", "plan_id", planID, "copy_id", dup.ID)
	out := dup.Clone()
	return &out
}

// TogglePlanVisibility shows or hides a plan.
func (s *Store) TogglePlanVisibility(ctx context.Context, planID string, visible bool) bool {
	const op, title = "toggle_plan_visibility", "Visibility change failed"
	sc, ok := s.mutation(ctx, op, title)
	if !ok {
		return false
	}

	raw, err := s.api.SetPlanVisibility(ctx, sc.tc, planID, visible)
	if err != nil {
		if !IsAborted(err) {
			s.failMutation(ctx, sc, op, title, fmt.Errorf("set visibility of %s: %w", planID, err), "Failed to change plan visibility")
		}
		return false
	}

	s.applyStatus(ctx, sc, op, raw, planID, func(p *Plan) { p.IsVisible = visible })
	state := "hidden"
	if visible {
		state = "visible"
	}
	s.log(sc.tc).Info("plan visibility changed", "plan_id", planID, "visible", visible)
	s.notifySuccess(ctx, "Plan updated", "Plan is now "+state)
	return true
}

// ArchivePlan soft-deletes a plan.
func (s *Store) ArchivePlan(ctx context.Context, planID string) bool {
	const op, title = "archive_plan", "Archive failed"
	sc, ok := s.mutation(ctx, op, title)
	if !ok {
		return false
	}

	raw, err := s.api.ArchivePlan(ctx, sc.tc, planID)
	if err != nil {
		if !IsAborted(err) {
			s.failMutation(ctx, sc, op, title, fmt.Errorf("archive plan %s: %w", planID, err), "Failed to archive plan")
		}
		return false
	}

	s.applyStatus(ctx, sc, op, raw, planID, func(p *Plan) {
		p.IsArchived = true
		p.IsActive = false
	})
	s.log(sc.tc).Info("plan archived", "plan_id", planID)
	s.notifySuccess(ctx, "Plan archived", "")
	return true
}

// applyStatus reconciles a status transition: the returned plan when the
// server sent one, else patch applied to the local copy.
func (s *Store) applyStatus(ctx context.Context, sc scope, op string, raw json.RawMessage, planID string, patch func(*Plan)) {
	updated, ok := s.decodeMutated(sc, op, raw)
	s.flush(ctx, "mutation", func() {
		if s.generation != sc.gen {
			return
		}
		s.touchLocked(planID)
		s.clearErrLocked()
		if ok {
			s.replaceLocked(updated)
			return
		}
		if i := s.indexLocked(planID); i >= 0 {
			patch(&s.plans[i])
		}
		if s.selected != nil && s.selected.ID == planID {
			patch(s.selected)
		}
	})
}

// ActivatePlanVersion makes versionID the only active entry of the version
// list, then tells the server. If the server refuses, the previous flags
// are restored. A version missing from the loaded list leaves the list
// untouched.
func (s *Store) ActivatePlanVersion(ctx context.Context, versionID string) bool {
	const op, title = "activate_plan_version", "Activation failed"
	sc, ok := s.mutation(ctx, op, title)
	if !ok {
		return false
	}

	var planID string
	previous := make(map[string]bool)
	s.mu.Lock()
	if s.generation == sc.gen {
		if i := slices.IndexFunc(s.versions, func(v Version) bool { return v.ID == versionID }); i >= 0 {
			planID = s.versions[i].PlanID
			for i := range s.versions {
				previous[s.versions[i].ID] = s.versions[i].IsActive
				s.versions[i].IsActive = s.versions[i].ID == versionID
			}
		}
	}
	s.mu.Unlock()

	if _, err := s.api.ActivateVersion(ctx, sc.tc, versionID); err != nil {
		s.apply(sc, func() {
			for i := range s.versions {
				if was, ok := previous[s.versions[i].ID]; ok {
					s.versions[i].IsActive = was
				}
			}
		})
		if !IsAborted(err) {
			s.failMutation(ctx, sc, op, title, fmt.Errorf("activate version %s: %w", versionID, err), "Failed to activate version")
		}
		return false
	}

	s.flush(ctx, "mutation", func() {
		if s.generation == sc.gen {
			if planID != "" {
				s.touchLocked(planID)
			}
			s.clearErrLocked()
		}
	})
	if planID == "" {
		s.log(sc.tc).Debug("activated version not in loaded list", "version_id", versionID)
	}
	s.log(sc.tc).Info("plan version activated", "plan_id", planID, "version_id", versionID)
	s.notifySuccess(ctx, "Version activated", "")
	return true
}

// reload refreshes the list with the filters of the last load.
func (s *Store) reload(ctx context.Context) {
	s.mu.RLock()
	f := s.filters
	s.mu.RUnlock()
	s.LoadPlans(ctx, f)
}
