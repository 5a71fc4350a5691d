package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coursedesk/coursedesk/config"
	"github.com/coursedesk/coursedesk/internal/bootstrap"
	"github.com/coursedesk/coursedesk/internal/cli"
	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/ports"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultSessionTimeout   = 30 * time.Second
)

type migrateOptions struct {
	Timeout time.Duration
}

type listOptions struct {
	Role string
}

type purgeOptions struct {
	ExpiredOnly bool
	Yes         bool
}

// expiredDeleter is implemented by stores that keep expired rows until swept.
type expiredDeleter interface {
	DeleteExpired(ctx context.Context) (int, error)
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer db.Close()

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return migrateErr
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete")
	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

// openSessionAdmin connects the configured session store. Only shared stores
// can be administered; the in-memory store lives inside the web process.
func openSessionAdmin(ctx context.Context, cmdCtx *commandContext) (ports.SessionAdmin, func(), error) {
	cfg := cmdCtx.Config
	dbCfg := bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: cmdCtx.Logger}
	var (
		backends bootstrap.SessionBackends
		closer   = func() {}
	)
	switch cfg.Session.Store {
	case config.StoreKindPostgres:
		db, err := bootstrap.ConnectDB(ctx, dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		backends.DB = db
		closer = db.Close
	case config.StoreKindRedis:
		rdb, err := bootstrap.ConnectRedis(ctx, dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		backends.Redis = rdb
		closer = func() {
			if closeErr := rdb.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
			}
		}
	default:
		return nil, nil, fmt.Errorf("session store %q cannot be administered from outside the web process", cfg.Session.Store)
	}

	repo, err := bootstrap.SessionRepository(cfg.Session, backends)
	if err != nil {
		closer()
		return nil, nil, err
	}
	admin, ok := repo.(ports.SessionAdmin)
	if !ok {
		closer()
		return nil, nil, fmt.Errorf("session store %q does not support listing", cfg.Session.Store)
	}
	return admin, closer, nil
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultSessionTimeout)
	defer cancel()

	admin, closeFn, err := openSessionAdmin(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeFn()

	sessions, err := admin.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	return printSessions(cmdCtx.Out, sessions, opts)
}

func parseListFlags(args []string) (listOptions, error) {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	opts := listOptions{}
	fs.StringVar(&opts.Role, "role", "", "Only list sessions of this role (teacher, officer, student)")
	if err := fs.Parse(args); err != nil {
		return listOptions{}, err
	}
	if opts.Role != "" && !domainauth.ParseRole(opts.Role).Valid() {
		return listOptions{}, fmt.Errorf("--role %q is not a known role", opts.Role)
	}
	return opts, nil
}

func printSessions(w io.Writer, sessions []ports.StoredSession, opts listOptions) error {
	role := domainauth.ParseRole(opts.Role)
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		if opts.Role != "" && s.Identity.Role != role {
			continue
		}
		expires := "never"
		if !s.ExpiresAt.IsZero() {
			expires = s.ExpiresAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			s.Key,
			string(s.Identity.Role),
			s.Identity.UserID,
			s.Identity.DisplayName(),
			expires,
		})
	}
	if err := cli.RenderTable(w, []string{"key", "role", "user", "name", "expires"}, rows); err != nil {
		return err
	}
	return writef(w, "%d session(s)\n", len(rows))
}

func runPurgeSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parsePurgeFlags(args)
	if err != nil {
		return err
	}
	action := "delete ALL stored sessions (every user is signed out)"
	if opts.ExpiredOnly {
		action = "delete expired sessions"
	}
	if !opts.Yes {
		if confirmErr := confirmAction(cmdCtx, action); confirmErr != nil {
			return confirmErr
		}
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultSessionTimeout)
	defer cancel()

	admin, closeFn, err := openSessionAdmin(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeFn()

	var removed int
	if opts.ExpiredOnly {
		deleter, ok := admin.(expiredDeleter)
		if !ok {
			return writef(cmdCtx.Out, "store %q expires sessions on its own; nothing to do\n", cmdCtx.Config.Session.Store)
		}
		removed, err = deleter.DeleteExpired(ctx)
	} else {
		removed, err = admin.Purge(ctx)
	}
	if err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	cmdCtx.Logger.Info("purge sessions complete", "removed", removed, "expired_only", opts.ExpiredOnly)
	return writef(cmdCtx.Out, "removed %d session(s)\n", removed)
}

func parsePurgeFlags(args []string) (purgeOptions, error) {
	fs := flag.NewFlagSet("purge-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	opts := purgeOptions{}
	fs.BoolVar(&opts.ExpiredOnly, "expired", false, "Only delete sessions past their expiry (PostgreSQL store)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return purgeOptions{}, err
	}
	return opts, nil
}

func confirmAction(cmdCtx *commandContext, action string) error {
	if err := writef(cmdCtx.Out, "About to %s.\nContinue? [y/N]: ", action); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(cmdCtx.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.New("aborted by user")
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}
