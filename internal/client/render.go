package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"mm/internal/content"
	"mm/internal/markup"
	"mm/internal/models"
	"mm/internal/notify"
	"mm/internal/view"
)

const fullDateLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

func eventTime(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

func (c *Controller) renderChat(ev models.ChatEvent) {
	room, created := c.state.EnsureRoom(ev.Channel)
	ch, _ := c.doc.Channel(room.ID, c.topicNode(room))
	if created {
		c.renderPicker()
	}

	var at time.Time
	name := markup.El("div", markup.Attrs{"class": "name"})
	stamp := markup.El("div", markup.Attrs{"class": "timestamp"})
	message := markup.El("div", markup.Attrs{"class": "message"})

	if ev.IsSystem() {
		message.AddClass("system")
	} else {
		at = eventTime(ev.Timestamp)
		who := fmt.Sprintf("%s (%s)", ev.RealName, ev.Sender)
		name.Attrs["title"] = who
		name.Append(markup.Txt(who))
		stamp.Attrs["title"] = at.Format(fullDateLayout)
		stamp.Attrs["data-ts"] = strconv.FormatInt(at.UnixMilli(), 10)
		stamp.Append(markup.Txt(view.Ago(at, c.clock.Now())))
	}

	text := ev.Message
	if stripped, ok := content.ActionText(text); ok {
		text = stripped
		message.AddClass("action")
	}
	mentioned := content.Mentions(text, c.session.Credentials.Login)
	if mentioned {
		message.AddClass("mentioned")
	}
	message.Append(markup.FromSegments(content.Format(text))...)

	line := markup.El("div", markup.Attrs{"class": "line"}, name, stamp, message)
	if content.IsOffRecord(ev.Message) {
		line.AddClass("off-record")
	}
	if ev.MsgID != "" {
		line.Attrs["data-msgid"] = ev.MsgID
		if c.session.Admin {
			line.Append(markup.El("a", markup.Attrs{"class": "redact", "data-msgid": ev.MsgID, "title": "Redact message"},
				markup.Txt("redact")))
		}
	}

	c.doc.Append(ch, ev.MsgID, line, at)

	if mentioned {
		c.notifyMention(ev, text)
	}

	if c.state.IncrementUnread(room.ID, ev.Timestamp) {
		c.renderPicker()
	}
}

func (c *Controller) notifyMention(ev models.ChatEvent, text string) {
	sender := ev.RealName
	if sender == "" {
		sender = ev.Sender
	}
	n := notify.Notification{Room: ev.Channel, Sender: sender, Text: text, MsgID: ev.MsgID}
	if !c.gate.Allow(n) {
		return
	}
	c.async(func() {
		if err := c.notifier.Notify(c.ctx, n); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("failed to deliver notification", "room", n.Room, "msgid", n.MsgID, "error", err)
		}
	})
}

func (c *Controller) renderPicker() {
	current := c.state.Current()
	rooms := c.state.Rooms()
	entries := make([]view.PickerEntry, 0, len(rooms))
	for _, r := range rooms {
		e := view.PickerEntry{ID: r.ID, Title: r.Title, Active: r.ID == current}
		if !e.Active && r.Unread > 0 {
			e.Badge = strconv.Itoa(r.Unread)
		}
		entries = append(entries, e)
	}
	c.doc.SetPicker(entries)
}

func (c *Controller) renderPanel() {
	s := c.state
	creds := c.session.Credentials
	p := view.Panel{
		Credentials: fmt.Sprintf("Logged in as %s (%s, via %s). Currently %d attending (total attendance this meeting: %d).",
			creds.Name, creds.Login, creds.Provider, s.Attendees, s.MaxPeople),
		Counter:       len(s.Roster),
		Wide:          c.session.Admin,
		InviteVisible: !c.session.Guest(),
	}

	if c.session.Admin {
		p.Muted = s.Blocked.Sorted()
		p.Banned = s.Banned.Sorted()
	}

	for _, u := range s.Roster {
		entry := view.UserEntry{ID: u}
		if c.session.Admin {
			entry.Muted = s.Blocked.Has(u)
			entry.Banned = s.Banned.Has(u)
			if entry.Muted {
				entry.Title = "User muted - cannot post"
				entry.Actions = append(entry.Actions, "unmute")
			} else {
				entry.Actions = append(entry.Actions, "mute")
			}
			if entry.Banned {
				entry.Title = "User banned - cannot read or post"
				entry.Actions = append(entry.Actions, "unban")
			} else {
				entry.Actions = append(entry.Actions, "ban")
			}
		}
		p.Users = append(p.Users, entry)
	}

	if q := s.Quorum; q != nil {
		if s.QuorumReached() {
			p.Quorum = &view.QuorumBanner{Reached: true, Text: fmt.Sprintf(
				"Quorum has been reached. %d members present or assigned via proxy out of a required %d.",
				len(q.Present), q.Required)}
		} else {
			p.Quorum = &view.QuorumBanner{Text: fmt.Sprintf(
				"Quorum has NOT been reached yet. %d members present or assigned via proxy out of a required %d.",
				len(q.Present), q.Required)}
		}
	}

	c.doc.SetPanel(p)
}
