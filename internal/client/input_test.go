package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mm/internal/models"
)

var enter = KeyEvent{Key: KeyEnter}

func TestCheckSend_Posts(t *testing.T) {
	h := newHarness(t, "alice", false)
	c := h.c
	c.Dispatch(roomData("general", "General", ""))

	c.SetInput("hello there")
	require.True(t, c.CheckSend(enter, false))
	require.Equal(t, []models.PostRequest{{Room: "general", Message: "hello there"}}, h.api.posts)
	require.Empty(t, c.Input())
}

func TestCheckSend_Keys(t *testing.T) {
	h := newHarness(t, "alice", false)
	c := h.c
	c.Dispatch(roomData("general", "General", ""))

	c.SetInput("line one")
	require.True(t, c.CheckSend(KeyEvent{Key: KeyEnter, Ctrl: true}, false))
	require.Equal(t, "line one\n", c.Input())

	require.False(t, c.CheckSend(KeyEvent{Key: KeyEnter, Shift: true}, false))
	require.False(t, c.CheckSend(KeyEvent{Key: "a"}, false))
	require.Empty(t, h.api.posts)

	c.AutocompleteOpen = true
	require.False(t, c.CheckSend(enter, false), "Enter belongs to the mention popup")
	require.Empty(t, h.api.posts)

	require.True(t, c.CheckSend(KeyEvent{}, true))
	require.Equal(t, []models.PostRequest{{Room: "general", Message: "line one\n"}}, h.api.posts)
}

func TestCheckSend_BeforeBootstrap(t *testing.T) {
	h := newHarness(t, "alice", false)
	c := h.c

	c.SetInput("anyone here?")
	require.True(t, c.CheckSend(enter, false))
	require.Empty(t, h.api.posts)
	require.Equal(t, "anyone here?", c.Input(), "input is kept until a room exists")
	require.Equal(t, []string{NoRoomMessage}, h.rec.Alerts())

	c.Dispatch(roomData("general", "General", ""))
	require.True(t, c.CheckSend(enter, false))
	require.Equal(t, []models.PostRequest{{Room: "general", Message: "anyone here?"}}, h.api.posts)
}

func TestCheckSend_Blank(t *testing.T) {
	h := newHarness(t, "alice", false)
	h.c.SetInput("   \n")
	require.True(t, h.c.CheckSend(enter, false))
	require.Empty(t, h.api.posts)
}

func TestCheckSend_SelfAnnouncement(t *testing.T) {
	h := newHarness(t, "alice", false)
	c := h.c
	c.Dispatch(roomData("general", "General", ""))

	c.SetInput("jdoe | proxy for jsmith")
	require.True(t, c.CheckSend(enter, false))
	require.Empty(t, h.api.posts)
	require.Equal(t, []string{SelfAnnouncementMessage}, h.rec.Alerts())
	require.Equal(t, "jdoe | proxy for jsmith", c.Input(), "rejected input stays in the composer")

	c.SetInput("votes: yes|no")
	require.True(t, c.CheckSend(enter, false))
	require.Len(t, h.api.posts, 1, "a pipe later in the sentence is fine")
}

func TestCheckSend_SlashCommands(t *testing.T) {
	h := newHarness(t, "alice", true)
	c := h.c
	c.Dispatch(roomData("general", "General", ""))
	c.Dispatch(presence(2, "alice", "mallory"))

	c.SetInput("/ban mallory")
	require.True(t, c.CheckSend(enter, false))
	require.Empty(t, c.Input())
	require.Empty(t, h.api.posts)
	require.Equal(t, []models.MgmtRequest{{Action: models.MgmtActionBan, User: "mallory"}}, h.api.mgmt)
	require.True(t, c.State().Banned.Has("mallory"))
	require.Equal(t, []string{"User mallory updated"}, h.rec.Alerts())
	require.True(t, h.rec.panel.Users[1].Banned)

	// the next full snapshot wins over the optimistic edit
	c.Dispatch(models.Frame{Presence: &models.PresenceSnapshot{
		Attendees: 2,
		Current:   []string{"alice", "mallory"},
		Statuses:  &models.Statuses{Blocked: []string{}, Banned: []string{}},
	}})
	require.False(t, c.State().Banned.Has("mallory"))

	c.SetInput("/unban mallory")
	require.True(t, c.CheckSend(enter, false))
	require.Equal(t, models.MgmtActionUnban, h.api.mgmt[1].Action)

	c.SetInput("/ban <script>")
	require.True(t, c.CheckSend(enter, false))
	require.Len(t, h.api.mgmt, 2, "invalid targets are not sent")
	require.Equal(t, "Invalid user id: <script>", h.rec.Alerts()[2])
}

func TestCheckSend_FailedPostRestoresError(t *testing.T) {
	h := newHarness(t, "alice", false)
	c := h.c
	c.Dispatch(roomData("general", "General", ""))

	h.api.postErr = errBoom
	c.SetInput("hello")
	c.CheckSend(enter, false)
	require.Equal(t, "boom", c.Input())

	h.api.postErr = nil
	h.api.postResp = &models.Response{Success: false, Message: "You are muted"}
	c.SetInput("hello again")
	c.CheckSend(enter, false)
	require.Equal(t, "You are muted", c.Input())
}

func TestModeration(t *testing.T) {
	h := newHarness(t, "alice", true)
	c := h.c
	c.Dispatch(presence(2, "alice", "bob"))

	c.Block("bob")
	require.True(t, c.State().Blocked.Has("bob"))
	c.Unblock("bob")
	require.False(t, c.State().Blocked.Has("bob"))

	h.api.mgmtResp = &models.Response{Success: false, Message: "Permission denied"}
	c.Block("bob")
	require.False(t, c.State().Blocked.Has("bob"), "refused actions leave state alone")
	require.Equal(t, "Permission denied", h.rec.Alerts()[2])
}

func TestInviteAndProxies(t *testing.T) {
	h := newHarness(t, "alice", false)
	c := h.c

	c.Invite("  Bob Smith ")
	require.Equal(t, []string{"Bob Smith"}, h.api.invites)
	require.Len(t, h.rec.modals, 1)
	html := h.rec.modals[0].HTML()
	require.Contains(t, html, "Here is your invite link for Bob Smith: ")
	require.Contains(t, html, `<a href="https://meet.example.org/?invite=xyz" target="_blank">`)

	c.Invite("   ")
	require.Len(t, h.api.invites, 1)

	c.AssignProxies("amy  extra words\r\n\n  zed\n")
	require.Equal(t, [][]string{{"amy", "zed"}}, h.api.proxies)
	require.Equal(t, []string{"Proxies assigned"}, h.rec.Alerts())

	c.AssignProxies("\n \n")
	require.Len(t, h.api.proxies, 1)
}

func TestParseProxies(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"amy", []string{"amy"}},
		{"amy (proxy form)\nbob\r\ncarl\t# note", []string{"amy", "bob", "carl"}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ParseProxies(tt.in), tt.in)
	}
}
