package storage

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Jar is an http.CookieJar whose contents survive restarts. It is shared by
// the HTTP client and the websocket dialer so both present the same session.
type Jar struct {
	store *BboltStorage

	mu    sync.Mutex
	inner *cookiejar.Jar
}

func NewJar(store *BboltStorage) (*Jar, error) {
	j := &Jar{store: store}
	if err := j.reset(); err != nil {
		return nil, err
	}

	sets, err := store.ListCookies()
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}
	for _, set := range sets {
		u := &url.URL{Scheme: set.Scheme, Host: set.Host, Path: "/"}
		cookies := make([]*http.Cookie, 0, len(set.Cookies))
		for _, c := range set.Cookies {
			cookies = append(cookies, c.toHTTP())
		}
		j.inner.SetCookies(u, cookies)
	}
	return j, nil
}

func (j *Jar) reset() error {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
	return nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	inner := j.inner
	j.mu.Unlock()

	inner.SetCookies(u, cookies)
	if err := j.store.UpsertCookies(u.Scheme, u.Host, cookies); err != nil {
		slog.Error("failed to persist cookies", "host", u.Host, "error", err)
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Clear drops every cookie, in memory and on disk.
func (j *Jar) Clear() error {
	if err := j.store.ClearCookies(); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return j.reset()
}
