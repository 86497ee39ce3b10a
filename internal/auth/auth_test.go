package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"mm/internal/models"
)

type fakeAPI struct {
	prefs     *models.Preferences
	err       error
	loggedOut bool
}

func (f *fakeAPI) Preferences(context.Context) (*models.Preferences, error) {
	return f.prefs, f.err
}

func (f *fakeAPI) Logout(context.Context) error {
	f.loggedOut = true
	return nil
}

type memStore map[string]string

func (m memStore) SetItem(name, value string) error {
	m[name] = value
	return nil
}

func (m memStore) GetItem(name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", models.ErrNotFound
	}
	return v, nil
}

func (m memStore) RemoveItem(name string) error {
	delete(m, name)
	return nil
}

type fakeJar struct{ cleared bool }

func (j *fakeJar) Clear() error {
	j.cleared = true
	return nil
}

const redirectKey = "mm_redirect"

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func signedIn(login string) *models.Preferences {
	return &models.Preferences{
		Credentials: &models.Credentials{Login: login, Name: "Alice", Provider: "asf"},
		Admin:       true,
	}
}

func TestGate_Open(t *testing.T) {
	tests := []struct {
		name         string
		prefs        *models.Preferences
		stored       string
		location     string
		wantRedirect string
		wantErr      error
		wantStored   string
	}{
		{
			name:     "signed in",
			prefs:    signedIn("alice"),
			location: "https://meet.example.org/",
		},
		{
			name:         "invite link",
			prefs:        &models.Preferences{},
			location:     "https://meet.example.org/?action=invite&id=abc",
			wantRedirect: "https://meet.example.org/oauth?provider=guest&action=invite&id=abc",
		},
		{
			name:         "invite link already on the guest provider",
			prefs:        &models.Preferences{},
			location:     "https://meet.example.org/oauth?action=invite&id=abc&provider=guest",
			wantRedirect: "https://meet.example.org/oauth?action=invite&id=abc&provider=guest",
		},
		{
			name:         "anonymous",
			prefs:        &models.Preferences{},
			location:     "https://meet.example.org/?room=board",
			wantRedirect: "https://meet.example.org/oauth.html",
			wantStored:   "https://meet.example.org/?room=board",
		},
		{
			name:     "anonymous on sign-in page",
			prefs:    &models.Preferences{},
			location: "https://meet.example.org/oauth.html",
			wantErr:  ErrUnauthenticated,
		},
		{
			name:         "pending redirect",
			prefs:        signedIn("alice"),
			stored:       "https://meet.example.org/?room=board",
			location:     "https://meet.example.org/",
			wantRedirect: "https://meet.example.org/?room=board",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memStore{}
			if tt.stored != "" {
				store[redirectKey] = tt.stored
			}
			g := NewGate(&fakeAPI{prefs: tt.prefs}, store, &fakeJar{}, redirectKey)

			sess, err := g.Open(context.Background(), mustURL(t, tt.location))

			var redirect *RedirectError
			switch {
			case tt.wantRedirect != "":
				if !errors.As(err, &redirect) {
					t.Fatalf("expected redirect, got %v", err)
				}
				if redirect.Location != tt.wantRedirect {
					t.Errorf("redirect = %q, want %q", redirect.Location, tt.wantRedirect)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			default:
				if err != nil {
					t.Fatalf("Open failed: %v", err)
				}
				if sess.Credentials.Login != "alice" || !sess.Admin {
					t.Errorf("unexpected session %+v", sess)
				}
			}

			if got := store[redirectKey]; got != tt.wantStored {
				t.Errorf("stored redirect = %q, want %q", got, tt.wantStored)
			}
		})
	}
}

func TestGate_PreferencesError(t *testing.T) {
	boom := errors.New("boom")
	g := NewGate(&fakeAPI{err: boom}, memStore{}, &fakeJar{}, redirectKey)
	if _, err := g.Open(context.Background(), mustURL(t, "https://meet.example.org/")); !errors.Is(err, boom) {
		t.Errorf("expected wrapped boom, got %v", err)
	}
}

func TestGate_Logout(t *testing.T) {
	api := &fakeAPI{}
	jar := &fakeJar{}
	g := NewGate(api, memStore{}, jar, redirectKey)
	if err := g.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if !api.loggedOut || !jar.cleared {
		t.Errorf("loggedOut=%v cleared=%v", api.loggedOut, jar.cleared)
	}
}

func TestSession_Guest(t *testing.T) {
	if !(&Session{Credentials: models.Credentials{Login: "guest_1234"}}).Guest() {
		t.Error("guest_1234 should be a guest")
	}
	if (&Session{Credentials: models.Credentials{Login: "alice"}}).Guest() {
		t.Error("alice should not be a guest")
	}
}
