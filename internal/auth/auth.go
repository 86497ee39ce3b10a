// Package auth decides whether a launch may proceed to the chat session or
// must first go through the server's sign-in flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"mm/internal/models"
)

const (
	guestPrefix = "guest"
	signInPage  = "/oauth.html"
)

var (
	ErrUnauthenticated = errors.New("not signed in")
)

// RedirectError tells the caller to continue at Location instead of opening
// a session.
type RedirectError struct {
	Location string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to %s", e.Location)
}

type PreferencesClient interface {
	Preferences(ctx context.Context) (*models.Preferences, error)
	Logout(ctx context.Context) error
}

// ItemStore is persistent key/value storage that outlives a session.
type ItemStore interface {
	SetItem(name, value string) error
	GetItem(name string) (string, error)
	RemoveItem(name string) error
}

type CookieClearer interface {
	Clear() error
}

// Session is an authenticated user's view of the server.
type Session struct {
	Credentials models.Credentials
	Admin       bool
	Statuses    *models.Statuses
	Quorum      *models.Quorum
}

// Guest reports whether the login is a guest invite login.
func (s *Session) Guest() bool {
	return strings.HasPrefix(s.Credentials.Login, guestPrefix)
}

type Gate struct {
	api         PreferencesClient
	store       ItemStore
	cookies     CookieClearer
	redirectKey string
}

func NewGate(api PreferencesClient, store ItemStore, cookies CookieClearer, redirectKey string) *Gate {
	return &Gate{api: api, store: store, cookies: cookies, redirectKey: redirectKey}
}

// Open fetches preferences for the launch location and returns a session,
// or a *RedirectError when the user has to go elsewhere first.
func (g *Gate) Open(ctx context.Context, location *url.URL) (*Session, error) {
	prefs, err := g.api.Preferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch preferences: %w", err)
	}

	query := location.Query()
	if query.Get("action") == "invite" {
		rawQuery := query.Encode()
		if !query.Has("provider") {
			rawQuery = "provider=guest&" + rawQuery
		}
		return nil, &RedirectError{Location: resolve(location, "/oauth", rawQuery)}
	}

	if prefs.Credentials == nil {
		if location.Path == signInPage {
			return nil, ErrUnauthenticated
		}
		if err := g.store.SetItem(g.redirectKey, location.String()); err != nil {
			return nil, fmt.Errorf("failed to remember redirect: %w", err)
		}
		return nil, &RedirectError{Location: resolve(location, signInPage, "")}
	}

	redirect, err := g.store.GetItem(g.redirectKey)
	switch {
	case err == nil && redirect != "":
		if err := g.store.RemoveItem(g.redirectKey); err != nil {
			return nil, fmt.Errorf("failed to forget redirect: %w", err)
		}
		return nil, &RedirectError{Location: redirect}
	case err != nil && !errors.Is(err, models.ErrNotFound):
		slog.Warn("failed to read stored redirect", "error", err)
	}

	return &Session{
		Credentials: *prefs.Credentials,
		Admin:       prefs.Admin,
		Statuses:    prefs.Statuses,
		Quorum:      prefs.Quorum,
	}, nil
}

// Logout ends the server session and forgets the stored cookies.
func (g *Gate) Logout(ctx context.Context) error {
	if err := g.api.Logout(ctx); err != nil {
		return err
	}
	return g.cookies.Clear()
}

func resolve(base *url.URL, path, rawQuery string) string {
	u := url.URL{Scheme: base.Scheme, Host: base.Host, Path: path, RawQuery: rawQuery}
	return u.String()
}
