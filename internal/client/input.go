package client

import (
	"context"
	"regexp"
	"strings"

	"mm/internal/content"
	"mm/internal/models"
)

const KeyEnter = "Enter"

// SelfAnnouncementMessage explains why a roll-call style line was not sent.
const SelfAnnouncementMessage = "It looks like you are announcing your attendance. " +
	"Attendance is recorded automatically when you join, so there is no need to post it in the chat."

// NoRoomMessage is shown when a message is submitted before the server has
// announced any room.
const NoRoomMessage = "Not connected to a room yet, please wait a moment."

var (
	selfAnnouncement = regexp.MustCompile(`^\s*\S+\s*\|`)
	slashCommand     = regexp.MustCompile(`^/(ban|unban)\s+(\S+)`)
)

// KeyEvent is the key press that triggered CheckSend.
type KeyEvent struct {
	Key   string
	Shift bool
	Ctrl  bool
}

// CheckSend handles a key press in the composer. It reports whether the key
// was consumed (the front end should not insert it).
func (c *Controller) CheckSend(ev KeyEvent, force bool) bool {
	if c.AutocompleteOpen && !force {
		return false
	}
	if !force && ev.Key == KeyEnter && ev.Ctrl {
		c.doc.SetInput(c.doc.Input() + "\n")
		return true
	}
	if !force && (ev.Key != KeyEnter || ev.Shift || ev.Ctrl) {
		return false
	}

	text := c.doc.Input()
	if strings.TrimSpace(text) == "" {
		return true
	}

	if selfAnnouncement.MatchString(text) {
		c.doc.Alert(SelfAnnouncementMessage)
		return true
	}

	if m := slashCommand.FindStringSubmatch(text); m != nil {
		c.doc.SetInput("")
		if m[1] == "ban" {
			c.Ban(m[2])
		} else {
			c.Unban(m[2])
		}
		return true
	}

	if !c.state.Bootstrapped() {
		c.doc.Alert(NoRoomMessage)
		return true
	}

	c.doc.SetInput("")
	c.send(c.state.Current(), text)
	return true
}

// send posts text to room. A failure replaces the composer content with the
// server's error text.
func (c *Controller) send(room, text string) {
	c.call(func(ctx context.Context) func() {
		resp, err := c.api.Post(ctx, room, text)
		return func() {
			switch {
			case err != nil:
				c.doc.SetInput(err.Error())
			case !resp.Success:
				c.doc.SetInput(resp.Message)
			}
		}
	})
}

// validTarget rejects moderation targets that cannot be user ids.
func (c *Controller) validTarget(user string) bool {
	if err := content.ValidateUserID(user); err != nil {
		c.doc.Alert("Invalid user id: " + user)
		return false
	}
	return true
}

var moderationVerb = map[models.MgmtAction]string{
	models.MgmtActionBlock:   "mute",
	models.MgmtActionUnblock: "unmute",
	models.MgmtActionBan:     "ban",
	models.MgmtActionUnban:   "unban",
}
