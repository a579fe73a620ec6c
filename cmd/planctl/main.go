// planctl is a command-line client for the business-model plan API.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/config"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/logging"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/session"
)

// app is the state shared by every command of one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	// Global flags
	apiURL   string
	tenantID string
	env      string
	logLevel string
	asJSON   bool

	cfg    *config.Config
	logger *slog.Logger
	sess   *session.Session
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "planctl",
		Short:         "Inspect and manage business-model pricing plans",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `planctl talks to the business-model API as one tenant in one environment.

Connection settings come from the environment (BM_API_URL, BM_API_KEY,
BM_TENANT_ID, BM_ENVIRONMENT, REDIS_URL) or a .env file; flags override them.`,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: a.close,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	f := root.PersistentFlags()
	f.StringVar(&a.apiURL, "api-url", "", "business-model API base URL")
	f.StringVarP(&a.tenantID, "tenant", "t", "", "tenant id")
	f.StringVarP(&a.env, "env", "e", "", "environment: live or test")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.BoolVar(&a.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		a.listCmd(),
		a.getCmd(),
		a.versionsCmd(),
		a.priceCmd(),
		a.validateCmd(),
		a.createCmd(),
		a.updateCmd(),
		a.editCmd(),
		a.duplicateCmd(),
		a.visibilityCmd(),
		a.archiveCmd(),
		a.activateCmd(),
		a.deleteCmd(),
		a.watchCmd(),
	)
	return root
}

// open loads configuration, applies flag overrides and opens the session.
func (a *app) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return a.fail(err)
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.tenantID != "" {
		cfg.TenantID = a.tenantID
	}
	if a.env != "" {
		cfg.Environment = a.env
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return a.fail(err)
	}
	if cfg.TenantID == "" {
		return a.fail(fmt.Errorf("no tenant: set BM_TENANT_ID or --tenant"))
	}

	a.cfg = cfg
	a.logger = logging.NewWithWriter(a.errOut, cfg.LogLevel, cfg.LogFormat)
	a.sess, err = session.Open(cmd.Context(), cfg, a.logger,
		session.WithNotifier(businessmodel.NotifierFunc(a.toast)))
	if err != nil {
		return a.fail(err)
	}
	return nil
}

func (a *app) close(*cobra.Command, []string) error {
	if a.sess == nil {
		return nil
	}
	return a.sess.Close()
}

// toast prints mutation outcomes on stderr.
func (a *app) toast(_ context.Context, t businessmodel.Toast) {
	if t.Message == "" {
		fmt.Fprintf(a.errOut, "%s: %s\n", t.Level, t.Title)
		return
	}
	fmt.Fprintf(a.errOut, "%s: %s: %s\n", t.Level, t.Title, t.Message)
}

// fail reports err on stderr and returns it so cobra exits non-zero.
func (a *app) fail(err error) error {
	fmt.Fprintf(a.errOut, "Error: %v\n", err)
	return err
}

// storeErr turns the store's last failure into a command error.
func (a *app) storeErr(what string) error {
	return a.fail(fmt.Errorf("%s: %s", what, a.sess.Store.ErrorMessage()))
}
