package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/retry"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// Handler receives decoded events.
type Handler func(Event)

// Listen connects to url, sends sub, and hands every event to fn until ctx
// ends (nil) or the connection fails (an error).
func Listen(ctx context.Context, url string, sub Subscription, fn Handler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("realtime: dial %s: %w", url, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("realtime: subscribe: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("realtime: read: %w", err)
		}
		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			continue
		}
		fn(ev)
	}
}

// Follow keeps a Listen session open, reconnecting with backoff per
// policy. It returns nil once ctx ends.
func Follow(ctx context.Context, url string, sub Subscription, fn Handler, policy retry.Policy, logger *slog.Logger) error {
	return retry.Do(ctx, policy, func(ctx context.Context) error {
		err := Listen(ctx, url, sub, fn)
		if err != nil && ctx.Err() == nil {
			logger.Warn("realtime connection lost", "url", url, "error", err)
			return err
		}
		return nil
	})
}

// EnvironmentHandler turns environment_changed events for the provider's
// tenant into scope changes. An event naming the environment already in
// use still notifies listeners so cached data is dropped.
func EnvironmentHandler(p *tenant.Provider, logger *slog.Logger) Handler {
	return func(ev Event) {
		if ev.Type != EventEnvironmentChanged {
			return
		}
		cur := p.Current()
		if ev.TenantID != "" && ev.TenantID != cur.TenantID {
			return
		}
		logger.Info("environment changed", "tenant_id", cur.TenantID, "environment", ev.Environment)
		switch tenant.Environment(ev.Environment) {
		case tenant.EnvLive, tenant.EnvTest:
			live := tenant.Environment(ev.Environment) == tenant.EnvLive
			if live != cur.IsLive {
				p.SetLive(live)
				return
			}
		}
		p.Announce()
	}
}
