package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
)

// Credentials identify the signed in user as reported by /preferences.
type Credentials struct {
	UID      string `json:"uid,omitempty"`
	Login    string `json:"login"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Statuses is the moderation snapshot: who is muted (blocked) and who is banned.
type Statuses struct {
	Blocked []string `json:"blocked"`
	Banned  []string `json:"banned"`
}

// Quorum is the governance threshold shown as a banner.
type Quorum struct {
	Present  []string `json:"present"`
	Required int      `json:"required"`
}

// Preferences is the /preferences response. Credentials is nil when the
// caller has no session.
type Preferences struct {
	Credentials *Credentials `json:"credentials"`
	Admin       bool         `json:"admin"`
	Statuses    *Statuses    `json:"statuses,omitempty"`
	Quorum      *Quorum      `json:"quorum,omitempty"`
}

// RoomData describes a room announced by the server at connect.
type RoomData struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Topic string `json:"topic"`
}

// ChatEvent is a single chat line pushed by the server. A zero Timestamp marks
// a system announcement.
type ChatEvent struct {
	Channel   string  `json:"channel"`
	Sender    string  `json:"sender"`
	RealName  string  `json:"realname"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"` // Unix timestamp (seconds, may carry a fraction)
	MsgID     string  `json:"msgid"`
}

// IsSystem reports whether the event is a server announcement.
func (e ChatEvent) IsSystem() bool {
	return e.Timestamp == 0
}

// PresenceSnapshot is the periodic "pong" push carrying roster and counts.
type PresenceSnapshot struct {
	Attendees int       `json:"attendees"`
	Max       int       `json:"max"`
	Current   []string  `json:"current"`
	Statuses  *Statuses `json:"statuses,omitempty"`
	Quorum    *Quorum   `json:"quorum,omitempty"`
}

// Frame is one inbound websocket frame. The server does not tag frames with a
// type; they are told apart by which fields are present.
type Frame struct {
	RoomData *RoomData
	Chat     *ChatEvent
	Presence *PresenceSnapshot
}

type rawFrame struct {
	RoomData *RoomData       `json:"room_data"`
	Channel  *string         `json:"channel"`
	Pong     json.RawMessage `json:"pong"`
}

// UnmarshalJSON classifies the frame by field presence.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Frame{RoomData: raw.RoomData}

	if raw.Channel != nil && *raw.Channel != "" {
		var chat ChatEvent
		if err := json.Unmarshal(data, &chat); err != nil {
			return err
		}
		f.Chat = &chat
		return nil
	}

	if isTruthy(raw.Pong) {
		var presence PresenceSnapshot
		if err := json.Unmarshal(data, &presence); err != nil {
			return err
		}
		f.Presence = &presence
	}
	return nil
}

// Empty reports whether the frame carried nothing the client understands.
func (f Frame) Empty() bool {
	return f.RoomData == nil && f.Chat == nil && f.Presence == nil
}

// The server sends pong as either true or a random token string.
func isTruthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch {
	case len(v) == 0:
		return false
	case bytes.Equal(v, []byte("null")), bytes.Equal(v, []byte("false")),
		bytes.Equal(v, []byte(`""`)), bytes.Equal(v, []byte("0")):
		return false
	}
	return true
}

type MgmtAction string

const (
	MgmtActionBlock   MgmtAction = "block"
	MgmtActionUnblock MgmtAction = "unblock"
	MgmtActionBan     MgmtAction = "ban"
	MgmtActionUnban   MgmtAction = "unban"
	MgmtActionRedact  MgmtAction = "redact"
)

type MgmtRequest struct {
	Action MgmtAction `json:"action"`
	User   string     `json:"user,omitempty"`
	MsgID  string     `json:"msgid,omitempty"`
}

// Response is the generic {success, message} envelope used by every POST
// endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type PostRequest struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

type InviteRequest struct {
	Name string `json:"name"`
}

type InviteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
}

type ProxyRequest struct {
	Members []string `json:"members"`
}
