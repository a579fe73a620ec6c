package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errRejected = errors.New("rejected")

func (a *app) duplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <plan-id> <name>",
		Short: "Copy a plan under a new name (the copy is hidden)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dup := a.sess.Store.DuplicatePlan(cmd.Context(), args[0], args[1])
			if dup == nil {
				if a.sess.Store.Err() != nil {
					return errRejected
				}
				return nil
			}
			if a.asJSON {
				return a.printJSON(dup)
			}
			fmt.Fprintln(a.out, dup.ID)
			return nil
		},
	}
}

func (a *app) visibilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "visibility <plan-id> show|hide",
		Short:     "Show or hide a plan",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"show", "hide"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var visible bool
			switch args[1] {
			case "show":
				visible = true
			case "hide":
			default:
				return a.fail(fmt.Errorf("visibility must be show or hide, got %q", args[1]))
			}
			if !a.sess.Store.TogglePlanVisibility(cmd.Context(), args[0], visible) {
				return errRejected
			}
			return nil
		},
	}
}

func (a *app) archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <plan-id>",
		Short: "Archive a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.sess.Store.ArchivePlan(cmd.Context(), args[0]) {
				return errRejected
			}
			return nil
		},
	}
}

func (a *app) activateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <plan-id> <version-number|version-id>",
		Short: "Make a version the active one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions := a.sess.Store.LoadVersions(cmd.Context(), args[0])
			if a.sess.Store.Err() != nil {
				return a.storeErr("list versions")
			}
			for _, v := range versions {
				if v.ID != args[1] && v.VersionNumber != args[1] {
					continue
				}
				if !a.sess.Store.ActivatePlanVersion(cmd.Context(), v.ID) {
					return errRejected
				}
				return nil
			}
			return a.fail(fmt.Errorf("plan %s has no version %q", args[0], args[1]))
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a plan without subscribers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Failures have already been reported as toasts
			if err := a.sess.Store.DeletePlan(cmd.Context(), args[0]); err != nil {
				return err
			}
			return nil
		},
	}
}
