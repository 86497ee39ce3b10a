package client

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"mm/internal/content"
	"mm/internal/markup"
	"mm/internal/models"
	"mm/internal/storage"
)

var lineBreak = regexp.MustCompile(`\r?\n`)

func (c *Controller) Block(user string) {
	c.moderate(models.MgmtActionBlock, user, c.state.Block)
}

func (c *Controller) Unblock(user string) {
	c.moderate(models.MgmtActionUnblock, user, c.state.Unblock)
}

func (c *Controller) Ban(user string) {
	c.moderate(models.MgmtActionBan, user, c.state.Ban)
}

func (c *Controller) Unban(user string) {
	c.moderate(models.MgmtActionUnban, user, c.state.Unban)
}

// moderate sends a moderation action and, once the server accepts it,
// applies the matching edit locally until the next snapshot replaces it.
func (c *Controller) moderate(action models.MgmtAction, user string, apply func(string)) {
	if !c.validTarget(user) {
		return
	}
	c.call(func(ctx context.Context) func() {
		resp, err := c.api.Manage(ctx, models.MgmtRequest{Action: action, User: user})
		return func() {
			if err != nil {
				c.doc.Alert(fmt.Sprintf("Could not %s %s: %v", moderationVerb[action], user, err))
				return
			}
			if resp.Success {
				apply(user)
			}
			c.doc.Alert(resp.Message)
			c.renderPanel()
		}
	})
}

// Redact removes a message for everyone. The line disappears from the view
// once the server confirms.
func (c *Controller) Redact(msgID string) {
	if msgID == "" {
		return
	}
	c.call(func(ctx context.Context) func() {
		resp, err := c.api.Manage(ctx, models.MgmtRequest{Action: models.MgmtActionRedact, MsgID: msgID})
		return func() {
			switch {
			case err != nil:
				c.doc.Alert(fmt.Sprintf("Could not redact message: %v", err))
			case !resp.Success:
				c.doc.Alert(resp.Message)
			default:
				if !c.doc.Remove(msgID) {
					slog.Debug("redacted message not on screen", "msgid", msgID)
				}
			}
		}
	})
}

// Invite requests an invite link for name and shows it in a modal.
func (c *Controller) Invite(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	c.call(func(ctx context.Context) func() {
		resp, err := c.api.Invite(ctx, name)
		return func() {
			switch {
			case err != nil:
				c.doc.Alert(err.Error())
			case !resp.Success:
				c.doc.Alert(resp.Message)
			default:
				body := markup.El("div", markup.Attrs{"class": "invite"},
					markup.Txt(fmt.Sprintf("Here is your invite link for %s: ", name)))
				body.Append(markup.FromSegments(content.FixupURLs(resp.URL))...)
				c.doc.Modal(body)
			}
		}
	})
}

// ParseProxies takes the first whitespace separated token of every line.
func ParseProxies(text string) []string {
	var members []string
	for _, line := range lineBreak.Split(text, -1) {
		if fields := strings.Fields(line); len(fields) > 0 {
			members = append(members, fields[0])
		}
	}
	return members
}

// AssignProxies registers the user as proxy for the members listed in text,
// one per line.
func (c *Controller) AssignProxies(text string) {
	members := ParseProxies(text)
	if len(members) == 0 {
		c.doc.Alert("No member ids given.")
		return
	}
	c.call(func(ctx context.Context) func() {
		resp, err := c.api.Proxy(ctx, members)
		return func() {
			if err != nil {
				c.doc.Alert(err.Error())
				return
			}
			c.doc.Alert(resp.Message)
		}
	})
}

// SetNotify turns mention notifications on or off and remembers the choice.
func (c *Controller) SetNotify(enabled bool) {
	c.gate.SetEnabled(enabled)
	if c.settings != nil {
		if err := c.settings.SetItem(storage.ItemNotify, strconv.FormatBool(enabled)); err != nil {
			slog.Warn("failed to save notification setting", "error", err)
		}
	}
	slog.Info("notifications toggled", "enabled", enabled)
}
