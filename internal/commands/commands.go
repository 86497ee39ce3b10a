// Package commands implements the one-shot subcommands of the mm CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"mm/internal/api"
	"mm/internal/auth"
	"mm/internal/config"
	"mm/internal/content"
	"mm/internal/models"
)

var ErrNotAccepted = errors.New("the server did not accept the session cookie")

// Invite creates a guest invite link for name.
func Invite(ctx context.Context, cli *api.Client, name string, out io.Writer) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	resp, err := cli.Invite(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("failed to create invite: %s", resp.Message)
	}

	_, _ = fmt.Fprintf(out, "\nInvite Created Successfully!\n")
	_, _ = fmt.Fprintf(out, "Name:        %s\n", name)
	_, _ = fmt.Fprintf(out, "Invite Link: %s\n\n", resp.URL)
	_, _ = fmt.Fprintln(out, "Please share this link with the guest.")
	return nil
}

// Proxy registers the signed-in user as proxy for members.
func Proxy(ctx context.Context, cli *api.Client, members []string, out io.Writer) error {
	if len(members) == 0 {
		return fmt.Errorf("no member ids given")
	}

	resp, err := cli.Proxy(ctx, members)
	if err != nil {
		return fmt.Errorf("failed to assign proxies: %w", err)
	}
	_, _ = fmt.Fprintln(out, resp.Message)
	return nil
}

// Manage performs a moderation action. target is a user id, or a message id
// for redact.
func Manage(ctx context.Context, cli *api.Client, action models.MgmtAction, target string, out io.Writer) error {
	req := models.MgmtRequest{Action: action}
	switch action {
	case models.MgmtActionRedact:
		if target == "" {
			return fmt.Errorf("message id cannot be empty")
		}
		req.MsgID = target
	case models.MgmtActionBlock, models.MgmtActionUnblock, models.MgmtActionBan, models.MgmtActionUnban:
		if err := content.ValidateUserID(target); err != nil {
			return err
		}
		req.User = target
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	resp, err := cli.Manage(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", action, target, err)
	}
	_, _ = fmt.Fprintln(out, resp.Message)
	if !resp.Success {
		return fmt.Errorf("%s %s was refused", action, target)
	}
	return nil
}

// Login stores a session cookie copied from a browser sign-in and checks
// that the server accepts it.
func Login(ctx context.Context, cfg *config.Config, jar http.CookieJar, cli *api.Client, cookie string, out io.Writer) error {
	cookies, err := http.ParseCookie(strings.TrimSpace(cookie))
	if err != nil {
		return fmt.Errorf("invalid cookie, expected name=value: %w", err)
	}

	u, err := url.Parse(cfg.Server)
	if err != nil {
		return err
	}
	for _, c := range cookies {
		c.Path = "/"
		c.Secure = u.Scheme == "https"
		c.HttpOnly = true
	}
	jar.SetCookies(u, cookies)

	return Whoami(ctx, cli, out)
}

// Whoami prints the identity the stored session maps to.
func Whoami(ctx context.Context, cli *api.Client, out io.Writer) error {
	prefs, err := cli.Preferences(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch preferences: %w", err)
	}
	if prefs.Credentials == nil {
		return ErrNotAccepted
	}

	c := prefs.Credentials
	_, _ = fmt.Fprintf(out, "Logged in as %s (%s, via %s).\n", c.Name, c.Login, c.Provider)
	if prefs.Admin {
		_, _ = fmt.Fprintln(out, "You are a meeting administrator.")
	}
	return nil
}

// Logout ends the server session and forgets stored cookies.
func Logout(ctx context.Context, gate *auth.Gate, out io.Writer) error {
	if err := gate.Logout(ctx); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	_, _ = fmt.Fprintln(out, "Signed out.")
	return nil
}
