package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
)

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func money(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func status(p businessmodel.Plan) string {
	switch {
	case p.IsArchived:
		return "archived"
	case !p.IsVisible:
		return "hidden"
	default:
		return "visible"
	}
}

func prices(ps businessmodel.Prices) string {
	out := make([]string, 0, len(ps))
	for _, c := range slices.Sorted(maps.Keys(ps)) {
		out = append(out, money(ps[c], c))
	}
	return strings.Join(out, " / ")
}

func (a *app) printPlans(plans []businessmodel.Plan) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tVERSION\tSTATUS\tSUBSCRIBERS")
	for _, p := range plans {
		version := "-"
		if p.ActiveVersion != nil {
			version = p.ActiveVersion.VersionNumber
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.PlanType, version, status(p), p.SubscriberCount)
	}
	return w.Flush()
}

func (a *app) printPlan(p businessmodel.Plan) error {
	fmt.Fprintf(a.out, "%s (%s)\n", p.Name, p.ID)
	fmt.Fprintf(a.out, "Type: %s  Trial: %d days  Status: %s\n", p.PlanType, p.TrialDuration, status(p))
	fmt.Fprintf(a.out, "Currencies: %s (default %s)\n", strings.Join(p.SupportedCurrencies, ", "), p.DefaultCurrencyCode)

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	if len(p.Tiers) > 0 {
		fmt.Fprintln(w, "\nTIER\tFROM\tTO\tPRICES")
		for i, t := range p.Tiers {
			to := "∞"
			if t.MaxValue != nil {
				to = fmt.Sprint(*t.MaxValue)
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", i+1, t.MinValue, to, prices(t.Prices))
		}
	}
	if len(p.Notifications) > 0 {
		fmt.Fprintln(w, "\nNOTIFICATION\tCREDITS\tPRICES")
		for _, n := range p.Notifications {
			fmt.Fprintf(w, "%s\t%d\t%s\n", n.Method, n.CreditsPerUnit, prices(n.Prices))
		}
	}
	return w.Flush()
}

func (a *app) printVersions(versions []businessmodel.Version) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tACTIVE\tCHANGELOG")
	for _, v := range versions {
		active := ""
		if v.IsActive {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.VersionNumber, active, v.Changelog)
	}
	return w.Flush()
}
