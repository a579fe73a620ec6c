package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/realtime"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/retry"
)

func (a *app) watchCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print plan and environment change events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				url = a.cfg.EventsURL
			}
			if url == "" {
				url = eventsURL(a.cfg.APIURL)
			}
			sub := realtime.Subscription{AllEvents: true, TenantID: a.cfg.TenantID}
			policy := retry.Policy{Attempts: 10, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

			fmt.Fprintf(a.errOut, "watching %s\n", url)
			return realtime.Follow(cmd.Context(), url, sub, a.printEvent, policy, a.logger)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "websocket URL, derived from the API URL when empty")
	return cmd
}

// eventsURL maps http(s)://host to ws(s)://host/ws.
func eventsURL(apiURL string) string {
	u := strings.TrimRight(apiURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func (a *app) printEvent(ev realtime.Event) {
	if a.asJSON {
		_ = a.printJSON(ev)
		return
	}
	ts := ev.Timestamp.Format(time.TimeOnly)
	switch ev.Type {
	case realtime.EventPlanChanged:
		fmt.Fprintf(a.out, "%s %s plan %v %v\n", ts, ev.Environment, ev.Data["planId"], ev.Data["action"])
	default:
		fmt.Fprintf(a.out, "%s %s %s\n", ts, ev.Type, ev.Environment)
	}
}
