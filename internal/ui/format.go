package ui

import (
	"fmt"
	"strings"

	"mm/internal/view"
)

// formatLine renders a chat line as one row of plain text.
func formatLine(l *view.Line) string {
	node := l.Node
	var msg string
	if m := node.Find("message"); m != nil {
		msg = m.Text()
	}
	name := node.Find("name")
	if name == nil || name.Text() == "" {
		return "*** " + msg
	}

	var sb strings.Builder
	if ts := node.Find("timestamp"); ts != nil && ts.Text() != "" {
		sb.WriteString("[" + ts.Text() + "] ")
	}
	sb.WriteString(name.Text())
	if m := node.Find("message"); m != nil && m.HasClass("action") {
		sb.WriteString(" * ")
	} else {
		sb.WriteString(": ")
	}
	sb.WriteString(msg)
	if node.HasClass("off-record") {
		sb.WriteString(" (off the record)")
	}
	if mentioned(l) {
		sb.WriteString(" <<")
	}
	if l.ID != "" && node.Find("redact") != nil {
		sb.WriteString("  {" + l.ID + "}")
	}
	return sb.String()
}

func mentioned(l *view.Line) bool {
	m := l.Node.Find("message")
	return m != nil && m.HasClass("mentioned")
}

func pickerLabel(e view.PickerEntry) string {
	label := "#" + e.ID
	if e.Badge != "" {
		label += " (" + e.Badge + ")"
	}
	return label
}

func panelText(p view.Panel) string {
	var sb strings.Builder
	sb.WriteString(p.Credentials + "\n")
	if p.Quorum != nil {
		sb.WriteString("\n" + p.Quorum.Text + "\n")
	}

	fmt.Fprintf(&sb, "\n%d online:\n", p.Counter)
	for _, u := range p.Users {
		entry := "  " + u.ID
		if u.Title != "" {
			entry += " (" + u.Title + ")"
		}
		if len(u.Actions) > 0 {
			entry += " [" + strings.Join(u.Actions, ", ") + "]"
		}
		sb.WriteString(entry + "\n")
	}

	if len(p.Muted) > 0 {
		sb.WriteString("\nMuted: " + strings.Join(p.Muted, ", ") + "\n")
	}
	if len(p.Banned) > 0 {
		sb.WriteString("\nBanned: " + strings.Join(p.Banned, ", ") + "\n")
	}
	if p.InviteVisible {
		sb.WriteString("\nInvite a guest with :invite NAME\n")
	}
	return sb.String()
}
