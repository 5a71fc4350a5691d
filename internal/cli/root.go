// Package cli implements coursedesk-cli, a terminal client for the course
// backend. It shares the session store, gateway, access policy and menu
// composer with the web client; the profile name plays the role of the
// browser's session cookie.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coursedesk/coursedesk/config"
	"github.com/coursedesk/coursedesk/internal/adapters/filestore"
	"github.com/coursedesk/coursedesk/internal/bootstrap"
	"github.com/coursedesk/coursedesk/internal/domain/nav"
	"github.com/coursedesk/coursedesk/internal/gateway"
)

// Options configures one invocation.
type Options struct {
	Version   string
	Commit    string
	BuildTime string
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	// HTTPClient overrides the backend transport (tests).
	HTTPClient *http.Client
}

type app struct {
	opts    Options
	v       *viper.Viper
	cfgFile string
	verbose bool
	devAPI  bool

	cfg      *Config
	logger   *slog.Logger
	printer  *Printer
	routes   nav.RoleRouteMap
	store    *filestore.SessionFile
	services *bootstrap.ServiceContainer
	closers  []func()
}

// Execute runs the client with args and releases everything it started.
func Execute(ctx context.Context, args []string, opts Options) error {
	cmd, a := newRootCmd(opts)
	defer a.close()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(opts Options) (*cobra.Command, *app) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	a := &app{opts: opts, v: viper.New(), routes: nav.DefaultRouteMap()}

	root := &cobra.Command{
		Use:   "coursedesk-cli",
		Short: "Terminal client for the course system",
		Long: `coursedesk-cli signs in to the course backend and browses it from the terminal.

Example usage:
  coursedesk-cli login 13800000001            # Sign in with a password
  coursedesk-cli whoami                       # Show the signed-in identity
  coursedesk-cli menu                         # Show the menu for your role
  coursedesk-cli open /teacher/grading        # Check where a route leads
  coursedesk-cli get /courses                 # Fetch backend data as JSON`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
	}
	if opts.In != nil {
		root.SetIn(opts.In)
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/coursedesk/coursedesk.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.String("profile", "", "session profile to use")
	pf.String("server", "", "course backend base URL")
	pf.BoolVar(&a.devAPI, "devapi", false, "run against an in-process development backend")
	_ = a.v.BindPFlag("session.profile", pf.Lookup("profile"))
	_ = a.v.BindPFlag("server.base_url", pf.Lookup("server"))

	root.AddCommand(
		a.loginCmd(),
		a.loginSMSCmd(),
		a.sendCodeCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.menuCmd(),
		a.openCmd(),
		a.getCmd(),
		a.versionCmd(),
	)
	return root, a
}

func (a *app) initConfig(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.opts.Err, &slog.HandlerOptions{Level: level}))

	cfg, err := LoadConfig(a.v, a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	if !a.verbose {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cfg.Logging.Level)); err == nil {
			a.logger = slog.New(slog.NewTextHandler(a.opts.Err, &slog.HandlerOptions{Level: lvl}))
		}
	}
	a.printer = NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Output.Colors)
	a.logger.Debug("configuration loaded",
		"server", cfg.Server.BaseURL,
		"profile", cfg.Session.Profile,
		"session_file", cfg.Session.File,
	)
	return nil
}

// sessionKey is the profile under which the session is stored.
func (a *app) sessionKey() string { return a.cfg.Session.Profile }

// ctx carries the profile so gateway requests pick up its token.
func (a *app) ctx(cmd *cobra.Command) context.Context {
	return gateway.WithSessionKey(cmd.Context(), a.sessionKey())
}

// ensureServices builds the store and flows on first use, starting the
// development backend first when --devapi is set.
func (a *app) ensureServices() (*bootstrap.ServiceContainer, error) {
	if a.services != nil {
		return a.services, nil
	}
	if a.devAPI {
		url, stop, err := startDevAPI(a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, stop)
		a.cfg.Server.BaseURL = url
	}

	a.store = filestore.New(a.cfg.Session.File)
	appCfg := &config.AppConfig{
		Backend: config.BackendConfig{
			BaseURL:      a.cfg.Server.BaseURL,
			APIPrefix:    a.cfg.Server.APIPrefix,
			Timeout:      a.cfg.Server.Timeout,
			IdentityExpr: a.cfg.Server.IdentityExpr,
			TokenExpr:    a.cfg.Server.TokenExpr,
		},
		Session: config.SessionConfig{
			Store:        config.StoreKindMemory,
			TTL:          a.cfg.Session.TTL,
			CodeCooldown: a.cfg.Session.CodeCooldown,
		},
	}
	appCfg.Backend.Sanitize()

	services, err := bootstrap.NewServices(bootstrap.ServiceDeps{
		Config:     appCfg,
		Repo:       a.store,
		HTTPClient: a.opts.HTTPClient,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, err
	}
	services.Bus.Subscribe(func(ev gateway.Unauthorized) {
		a.printer.Warning("会话已失效，请重新登录 (coursedesk-cli login --profile %s)", ev.Key)
	})
	a.services = &services
	return a.services, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

var errNotSignedIn = errors.New("not signed in; run coursedesk-cli login first")
