package client

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"mm/internal/api"
	"mm/internal/auth"
	"mm/internal/models"
	"mm/internal/notify"
	"mm/internal/ws"
)

// ReloadMessage is shown when the connection drops and the session restarts.
const ReloadMessage = "Connection was lost, reloading..!"

type Transport interface {
	Frames() <-chan models.Frame
	Run(ctx context.Context) error
	Close()
}

// Runner keeps a chat session alive: whenever the connection is lost it
// discards the session and starts a fresh one.
type Runner struct {
	Open  func(ctx context.Context) (*auth.Session, error)
	Dial  func(ctx context.Context) (Transport, error)
	Delay time.Duration

	Options Options

	// OnSession is called with every new controller before it starts; front
	// ends use it to route input to the live session.
	OnSession func(c *Controller)
}

// Run blocks until ctx is done or a session fails for a reason other than a
// lost connection.
func (r *Runner) Run(ctx context.Context) error {
	if r.Options.Gate == nil {
		r.Options.Gate = notify.NewGate(ctx, false, defaultNotifyTTL)
	}
	for {
		err := r.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, ws.ErrConnectionLost) {
			return err
		}

		slog.Warn("reloading session", "error", err, "delay", r.Delay)
		if r.Options.Listener != nil {
			r.Options.Listener.Alert(ReloadMessage)
		}

		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Runner) session(ctx context.Context) error {
	sess, err := r.Open(ctx)
	if err != nil {
		if ctx.Err() == nil && serverUnreachable(err) {
			return errors.Join(ws.ErrConnectionLost, err)
		}
		return err
	}

	conn, err := r.Dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Join(ws.ErrConnectionLost, err)
	}

	r.Options.Gate.Disarm()

	g, gctx := errgroup.WithContext(ctx)
	c := New(gctx, sess, r.Options)
	if r.OnSession != nil {
		r.OnSession(c)
	}

	g.Go(func() error {
		return conn.Run(gctx)
	})
	g.Go(func() error {
		defer conn.Close()
		return c.Run(gctx, conn.Frames())
	})

	return g.Wait()
}

// serverUnreachable reports whether err means the server could not be
// reached or is restarting, as opposed to refusing the session.
func serverUnreachable(err error) bool {
	var redirect *auth.RedirectError
	if errors.As(err, &redirect) || errors.Is(err, auth.ErrUnauthenticated) {
		return false
	}

	var urlErr *url.Error
	var netErr net.Error
	var httpErr *api.HTTPError
	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return true
	case errors.As(err, &httpErr):
		return httpErr.Code >= http.StatusInternalServerError
	}
	return false
}
