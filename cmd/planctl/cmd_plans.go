package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
)

func (a *app) listCmd() *cobra.Command {
	var (
		planType string
		archived bool
		visible  bool
		search   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := businessmodel.Filters{
				PlanType:        businessmodel.PlanType(planType),
				IncludeArchived: archived,
				VisibleOnly:     visible,
				Search:          search,
			}
			plans := a.sess.Store.LoadPlans(cmd.Context(), f)
			if a.sess.Store.Err() != nil {
				return a.storeErr("list plans")
			}
			if a.asJSON {
				return a.printJSON(plans)
			}
			return a.printPlans(plans)
		},
	}
	cmd.Flags().StringVar(&planType, "type", "", `plan type: "Per User" or "Per Product"`)
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived plans")
	cmd.Flags().BoolVar(&visible, "visible", false, "only visible plans")
	cmd.Flags().StringVarP(&search, "search", "s", "", "match name or description")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <plan-id>",
		Short: "Show a plan with its pricing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.sess.Store.LoadPlanDetails(cmd.Context(), args[0])
			if p == nil {
				return a.storeErr("get plan")
			}
			if a.asJSON {
				return a.printJSON(p)
			}
			return a.printPlan(*p)
		},
	}
}

func (a *app) versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <plan-id>",
		Short: "List the versions of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions := a.sess.Store.LoadVersions(cmd.Context(), args[0])
			if a.sess.Store.Err() != nil {
				return a.storeErr("list versions")
			}
			if a.asJSON {
				return a.printJSON(versions)
			}
			return a.printVersions(versions)
		},
	}
}

func (a *app) priceCmd() *cobra.Command {
	var (
		quantity int
		currency string
	)
	cmd := &cobra.Command{
		Use:   "price <plan-id>",
		Short: "Quote the price of a quantity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.sess.Store.CalculatePrice(cmd.Context(), args[0], businessmodel.PriceQuery{
				Quantity: quantity,
				Currency: currency,
			})
			if err != nil {
				return a.fail(err)
			}
			if a.asJSON {
				return a.printJSON(q)
			}
			fmt.Fprintf(a.out, "%d x %s (%s): %s base + %s/unit = %s\n",
				q.Quantity, q.PlanID, q.TierLabel,
				money(q.BasePrice, q.Currency), money(q.UnitPrice, q.Currency), money(q.Total, q.Currency))
			return nil
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "number of units")
	cmd.Flags().StringVarP(&currency, "currency", "c", "", "currency code, the plan default when empty")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan-id>",
		Short: "Check the pricing of a plan's active version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := a.sess.Store.LoadPlanForEdit(cmd.Context(), args[0])
			if e == nil {
				return a.storeErr("load plan")
			}
			issues, err := a.sess.Store.ValidatePricing(cmd.Context(), *e)
			if err != nil {
				return a.fail(err)
			}
			if a.asJSON {
				return a.printJSON(map[string]any{"valid": len(issues) == 0, "errors": issues})
			}
			if len(issues) == 0 {
				fmt.Fprintln(a.out, "pricing is valid")
				return nil
			}
			for _, issue := range issues {
				fmt.Fprintf(a.out, "- %s\n", issue)
			}
			return a.fail(fmt.Errorf("%d pricing problem(s)", len(issues)))
		},
	}
}
