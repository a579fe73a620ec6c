package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
)

func (a *app) createCmd() *cobra.Command {
	var file, name string
	cmd := &cobra.Command{
		Use:   "create -f <plan.json>",
		Short: "Create a plan from a JSON definition",
		Long: `create reads a plan in the API's snake_case form (name, plan_type,
supported_currencies, tiers, features, notifications) and creates it with
version 1.0. Use -f - to read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p businessmodel.Plan
			if err := readJSON(cmd, file, &p); err != nil {
				return a.fail(err)
			}
			if name != "" {
				p.Name = name
			}
			// Failures have already been reported as toasts
			created, err := a.sess.Store.CreatePlan(cmd.Context(), p)
			if err != nil || created == nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(created)
			}
			fmt.Fprintln(a.out, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "plan definition, - for stdin")
	cmd.Flags().StringVar(&name, "name", "", "override the plan name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var (
		name        string
		description string
		trialDays   int
	)
	cmd := &cobra.Command{
		Use:   "update <plan-id>",
		Short: "Change a plan's name, description or trial length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if !f.Changed("name") && !f.Changed("description") && !f.Changed("trial-days") {
				return a.fail(fmt.Errorf("nothing to update: pass --name, --description or --trial-days"))
			}
			p := a.sess.Store.LoadPlanDetails(cmd.Context(), args[0])
			if p == nil {
				return a.storeErr("get plan")
			}
			if f.Changed("name") {
				p.Name = name
			}
			if f.Changed("description") {
				p.Description = description
			}
			if f.Changed("trial-days") {
				p.TrialDuration = trialDays
			}
			updated, err := a.sess.Store.UpdatePlan(cmd.Context(), p.ID, *p)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(updated)
			}
			return a.printPlan(*updated)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new plan name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().IntVar(&trialDays, "trial-days", 0, "trial length in days")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var file, version, changelog string
	cmd := &cobra.Command{
		Use:   "edit <plan-id> -f <changes.json>",
		Short: "Publish a new pricing version of a plan",
		Long: `edit loads the plan's current pricing, replaces every top-level field
present in the JSON document (tiers, features, notifications,
supported_currencies, ...) and submits the result as the next version,
which becomes the active one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var changes map[string]json.RawMessage
			if file != "" {
				if err := readJSON(cmd, file, &changes); err != nil {
					return a.fail(err)
				}
			}
			e := a.sess.Store.LoadPlanForEdit(cmd.Context(), args[0])
			if e == nil {
				return a.storeErr("load plan")
			}
			next, err := overlay(*e, changes)
			if err != nil {
				return a.fail(err)
			}
			next.PlanID = e.PlanID
			if version != "" {
				next.NextVersionNumber = version
			}
			if changelog != "" {
				next.Changelog = changelog
			}
			if !a.sess.Store.UpdatePlanAsNewVersion(cmd.Context(), next) {
				return errRejected
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fields to change, - for stdin")
	cmd.Flags().StringVar(&version, "version", "", "version number, the next minor when empty")
	cmd.Flags().StringVar(&changelog, "changelog", "", "what changed in this version")
	return cmd
}

// overlay returns e with every top-level field named in changes replaced.
func overlay(e businessmodel.EditPlanData, changes map[string]json.RawMessage) (businessmodel.EditPlanData, error) {
	if len(changes) == 0 {
		return e, nil
	}
	base, err := json.Marshal(e)
	if err != nil {
		return e, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &fields); err != nil {
		return e, err
	}
	maps.Copy(fields, changes)
	merged, err := json.Marshal(fields)
	if err != nil {
		return e, err
	}
	var out businessmodel.EditPlanData
	if err := json.Unmarshal(merged, &out); err != nil {
		return e, fmt.Errorf("apply changes: %w", err)
	}
	return out, nil
}

// readJSON decodes the file at path, or stdin when path is "-", into v.
func readJSON(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
