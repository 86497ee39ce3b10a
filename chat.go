package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"mm/internal/auth"
	"mm/internal/client"
	"mm/internal/models"
	"mm/internal/notify"
	"mm/internal/storage"
	"mm/internal/ui"
	"mm/internal/ws"
)

const maxRedirects = 5

// newScreen returns the screen the chat is drawn on. A nil screen makes tview
// open the controlling terminal.
var newScreen = func() tcell.Screen { return nil }

func runChat(ctx context.Context, a *app, launch string) error {
	if launch == "" {
		launch = a.cfg.Server
	}
	location, err := url.Parse(launch)
	if err != nil {
		return fmt.Errorf("invalid meeting URL: %w", err)
	}

	notifier, err := newNotifier(a)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Without a log file, logging is off while the screen owns the terminal.
	if a.cfg.LogFile == "" {
		prev := slog.Default()
		slog.SetDefault(slog.New(slog.DiscardHandler))
		defer slog.SetDefault(prev)
	}

	screen := ui.NewChatScreen(newScreen())
	runner := &client.Runner{
		Open: func(ctx context.Context) (*auth.Session, error) {
			sess, landed, err := openSession(ctx, a, location)
			if err == nil {
				location = landed
			}
			return sess, err
		},
		Dial: func(ctx context.Context) (client.Transport, error) {
			conn, err := ws.Dial(ctx, a.cfg.Server, a.jar)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		Delay: a.cfg.ReloadDelay,
		Options: client.Options{
			API:      a.api,
			Gate:     notify.NewGate(ctx, notifyEnabled(a), a.cfg.NotifyTTL),
			Notifier: notifier,
			Listener: screen,
			Settings: a.store,
		},
		OnSession: screen.Attach,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return screen.Run(gctx)
	})

	err = g.Wait()
	var redirect *auth.RedirectError
	if errors.As(err, &redirect) {
		return fmt.Errorf("open %s in a browser to sign in, then run `mm login <cookie>`", redirect.Location)
	}
	return err
}

// openSession follows redirects that stay on the meeting server, such as the
// guest invite exchange, and gives up on anything that needs a browser. It
// returns the location the session was opened on; invite links are single
// use, so reloads must start from there rather than from the launch URL.
func openSession(ctx context.Context, a *app, location *url.URL) (*auth.Session, *url.URL, error) {
	for range maxRedirects {
		sess, err := a.gate.Open(ctx, location)
		var redirect *auth.RedirectError
		if !errors.As(err, &redirect) {
			return sess, location, err
		}

		next, perr := location.Parse(redirect.Location)
		if perr != nil || next.Host != location.Host || strings.HasPrefix(next.Path, "/oauth.html") {
			return nil, nil, err
		}
		slog.Debug("following redirect", "location", next.String())
		if location, err = a.api.Visit(ctx, next); err != nil {
			return nil, nil, fmt.Errorf("failed to follow redirect: %w", err)
		}
	}
	return nil, nil, fmt.Errorf("too many redirects opening %s", location)
}

func notifyEnabled(a *app) bool {
	value, err := a.store.GetItem(storage.ItemNotify)
	if errors.Is(err, models.ErrNotFound) {
		return a.cfg.Notify
	}
	if err != nil {
		slog.Warn("failed to read notification setting", "error", err)
		return a.cfg.Notify
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return a.cfg.Notify
	}
	return enabled
}

func newNotifier(a *app) (notify.Notifier, error) {
	if a.cfg.WebPush.Subscription == "" {
		return notify.LogNotifier{}, nil
	}
	return notify.NewWebPush(a.cfg.WebPush)
}
