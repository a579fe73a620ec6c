// Package session assembles a plan store for one operator: API client,
// cache, tenant scope and the optional push channel that flips it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/cache"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/config"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/realtime"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/retry"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// cachePrefix namespaces plan store keys in a shared Redis.
const cachePrefix = "bm:"

// followPolicy reconnects the push channel with backoff, capped at 30s.
var followPolicy = retry.Policy{Attempts: 1000, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

// Session is a ready-to-use plan store.
type Session struct {
	Store  *businessmodel.Store
	Scope  *tenant.Provider
	Cache  cache.Cache
	logger *slog.Logger

	closers  []func() error
	unfollow []func()
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Option configures Open.
type Option func(*options)

type options struct {
	notifier businessmodel.Notifier
	api      businessmodel.API
}

// WithNotifier routes mutation outcomes to n instead of the log.
func WithNotifier(n businessmodel.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithAPI replaces the HTTP client.
func WithAPI(api businessmodel.API) Option {
	return func(o *options) { o.api = api }
}

// Open wires a Store from cfg. The store is cleared whenever the scope
// changes, and when cfg.EventsURL is set environment_changed events flip
// the scope. Close releases everything Open started.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Session, error) {
	o := options{notifier: businessmodel.LogNotifier{Logger: logger}}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{logger: logger}

	if o.api == nil {
		o.api = businessmodel.NewClient(businessmodel.ClientConfig{
			BaseURL: cfg.APIURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.HTTPTimeout,
			Retry: retry.Policy{
				Attempts:  cfg.RetryAttempts,
				BaseDelay: 200 * time.Millisecond,
				MaxDelay:  2 * time.Second,
			},
		}, businessmodel.WithClientLogger(logger))
	}

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisFromURL(ctx, cfg.RedisURL, cachePrefix)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		s.Cache = rc
		s.closers = append(s.closers, rc.Close)
		logger.Info("using redis plan cache")
	} else {
		s.Cache = cache.NewMemory()
	}

	s.Scope = tenant.NewProvider(tenant.Context{
		TenantID: cfg.TenantID,
		UserID:   cfg.UserID,
		IsLive:   cfg.IsLive(),
	})

	s.Store = businessmodel.NewStore(o.api, s.Scope,
		businessmodel.WithCache(s.Cache),
		businessmodel.WithNotifier(o.notifier),
		businessmodel.WithLogger(logger),
		businessmodel.WithTTL(cfg.ListTTL, cfg.DetailTTL),
	)
	unwatch := s.Store.Watch(s.Scope)
	s.closers = append(s.closers, func() error { unwatch(); return nil })

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if cfg.EventsURL != "" {
		s.Follow(runCtx, cfg.EventsURL)
	}
	return s, nil
}

// Follow listens for environment_changed events on url in the background.
// Switching tenants reconnects with the new tenant's subscription.
func (s *Session) Follow(ctx context.Context, url string) {
	var (
		mu      sync.Mutex
		stop    context.CancelFunc
		current string
	)
	start := func(tenantID string) {
		mu.Lock()
		defer mu.Unlock()
		if stop != nil {
			if tenantID == current {
				return
			}
			stop()
		}
		if ctx.Err() != nil {
			return
		}
		fctx, cancel := context.WithCancel(ctx)
		stop, current = cancel, tenantID
		s.listen(fctx, url, tenantID)
	}

	start(s.Scope.Current().TenantID)
	unsubscribe := s.Scope.Subscribe(func(_, next tenant.Context) {
		start(next.TenantID)
	})
	s.unfollow = append(s.unfollow, unsubscribe)
}

func (s *Session) listen(ctx context.Context, url, tenantID string) {
	sub := realtime.Subscription{
		EventTypes: []realtime.EventType{realtime.EventEnvironmentChanged},
		TenantID:   tenantID,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := realtime.Follow(ctx, url, sub, realtime.EnvironmentHandler(s.Scope, s.logger), followPolicy, s.logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("realtime follow stopped", "tenant_id", tenantID, "error", err)
		}
	}()
}

// Close stops the push listener, unsubscribes the store and closes the cache.
func (s *Session) Close() error {
	for _, unsubscribe := range s.unfollow {
		unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
