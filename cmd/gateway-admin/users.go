package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cmpt474/mm-login-gateway/internal/bootstrap"
	"github.com/cmpt474/mm-login-gateway/internal/data"
	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
)

type migrateOptions struct {
	Timeout time.Duration
}

type userOptions struct {
	Identity string
	Role     domainauth.Role
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseUserFlags(name string, args []string, wantRole bool) (userOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts userOptions
	var role string
	fs.StringVar(&opts.Identity, "identity", "", "Identity (computing ID or legacy username)")
	if wantRole {
		fs.StringVar(&role, "role", "", "Role to assign: student or mentor")
	}

	if err := fs.Parse(args); err != nil {
		return userOptions{}, err
	}

	opts.Identity = strings.TrimSpace(opts.Identity)
	if opts.Identity == "" {
		return userOptions{}, errors.New("--identity is required")
	}
	if wantRole {
		opts.Role = domainauth.Role(strings.ToLower(strings.TrimSpace(role)))
		if !opts.Role.Valid() {
			return userOptions{}, fmt.Errorf("--role must be student or mentor, got %q", role)
		}
	}
	return opts, nil
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

	return withDB(ctx, cmdCtx, func(db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")
		return bootstrap.RunMigrations(ctx, db, cmdCtx.Logger)
	})
}

func runUserGet(cmdCtx *commandContext, args []string) error {
	opts, err := parseUserFlags("user-get", args, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withDB(ctx, cmdCtx, func(db *sql.DB) error {
		user, err := data.NewUserRepo(db, data.RealTimeProvider{}).Get(ctx, opts.Identity)
		if err != nil {
			return fmt.Errorf("get user %q: %w", opts.Identity, err)
		}
		return renderUser(cmdCtx.Out, user)
	})
}

func runUserSetRole(cmdCtx *commandContext, args []string) error {
	opts, err := parseUserFlags("user-set-role", args, true)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withDB(ctx, cmdCtx, func(db *sql.DB) error {
		repo := data.NewUserRepo(db, data.RealTimeProvider{})
		updated, err := repo.Update(ctx, opts.Identity, domainauth.UserUpdate{Role: &opts.Role})
		if err != nil {
			return fmt.Errorf("set role for %q: %w", opts.Identity, err)
		}
		if !updated {
			return fmt.Errorf("set role for %q: %w", opts.Identity, domainauth.ErrUserNotFound)
		}
		cmdCtx.Logger.Info("role updated", "identity", opts.Identity, "role", opts.Role)

		user, err := repo.Get(ctx, opts.Identity)
		if err != nil {
			return fmt.Errorf("reload user %q: %w", opts.Identity, err)
		}
		return renderUser(cmdCtx.Out, user)
	})
}

func withDB(ctx context.Context, cmdCtx *commandContext, fn func(db *sql.DB) error) error {
	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()
	return fn(db)
}

func renderUser(w io.Writer, user domainauth.User) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	credential := "external"
	if user.AuthHash != "" {
		credential = "password"
	}
	rows := [][2]string{
		{"Identity", user.Identity},
		{"Role", string(user.Role)},
		{"Login", credential},
		{"Created", formatTime(user.CreatedAt)},
		{"Updated", formatTime(user.UpdatedAt)},
	}
	for _, r := range rows {
		if err := writef(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
