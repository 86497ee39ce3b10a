package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mm/internal/api"
	"mm/internal/auth"
	"mm/internal/commands"
	"mm/internal/config"
	"mm/internal/models"
	"mm/internal/storage"
)

// app holds what every subcommand needs: configuration, local state and an
// API client sharing the persistent cookie jar.
type app struct {
	cfg   *config.Config
	store *storage.BboltStorage
	jar   *storage.Jar
	api   *api.Client
	gate  *auth.Gate
	log   *os.File
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if a.log, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600); err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logOut = a.log
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})))

	if a.store, err = storage.NewBboltStorage(cfg.StateFile); err != nil {
		_ = a.Close()
		return nil, err
	}

	if a.jar, err = storage.NewJar(a.store); err != nil {
		_ = a.Close()
		return nil, err
	}

	if a.api, err = api.New(cfg.Server, a.jar); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.gate = auth.NewGate(a.api, a.store, a.jar, storage.ItemRedirect)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.log != nil {
		errs = append(errs, a.log.Close())
	}
	return errors.Join(errs...)
}

// newRootCmd builds the CLI. The returned func releases whatever the
// executed command opened.
func newRootCmd() (*cobra.Command, func() error) {
	var a *app
	closeApp := func() error {
		if a == nil {
			return nil
		}
		return a.Close()
	}

	root := &cobra.Command{
		Use:           "mm",
		Short:         "Meeting chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = openApp()
			return err
		},
	}

	var launch string
	chat := &cobra.Command{
		Use:   "chat",
		Short: "Join the meeting chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), a, launch)
		},
	}
	chat.Flags().StringVar(&launch, "url", "", "meeting URL to open (defaults to the configured server)")

	invite := &cobra.Command{
		Use:   "invite NAME",
		Short: "Create a guest invite link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Invite(cmd.Context(), a.api, args[0], cmd.OutOrStdout())
		},
	}

	proxy := &cobra.Command{
		Use:   "proxy MEMBER...",
		Short: "Register as proxy for members",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Proxy(cmd.Context(), a.api, args, cmd.OutOrStdout())
		},
	}

	login := &cobra.Command{
		Use:   "login COOKIE",
		Short: "Store a session cookie (name=value) copied from a browser sign-in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Login(cmd.Context(), a.cfg, a.jar, a.api, args[0], cmd.OutOrStdout())
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Whoami(cmd.Context(), a.api, cmd.OutOrStdout())
		},
	}

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Logout(cmd.Context(), a.gate, cmd.OutOrStdout())
		},
	}

	root.AddCommand(chat, invite, proxy, login, whoami, logout)
	for _, action := range []models.MgmtAction{
		models.MgmtActionBlock,
		models.MgmtActionUnblock,
		models.MgmtActionBan,
		models.MgmtActionUnban,
		models.MgmtActionRedact,
	} {
		use := string(action) + " USER"
		if action == models.MgmtActionRedact {
			use = string(action) + " MSGID"
		}
		root.AddCommand(&cobra.Command{
			Use:   use,
			Short: fmt.Sprintf("Moderation: %s", action),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return commands.Manage(cmd.Context(), a.api, action, args[0], cmd.OutOrStdout())
			},
		})
	}

	return root, closeApp
}

func run(ctx context.Context, args []string, out io.Writer) error {
	root, closeApp := newRootCmd()
	defer func() { _ = closeApp() }()

	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("mm failed", "error", err)
		os.Exit(1)
	}
}
