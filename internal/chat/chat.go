package chat

import (
	"slices"
	"strings"

	"mm/internal/models"
)

// Room is a chat stream as known to the client.
type Room struct {
	ID     string
	Title  string
	Topic  string
	Unread int
}

// State holds rooms, the current room, the roster and moderation status.
// It is owned by a single dispatch goroutine and is not safe for concurrent
// use.
type State struct {
	rooms   []*Room
	byID    map[string]*Room
	current string

	Attendees int
	MaxPeople int
	Roster    []string
	Blocked   Set
	Banned    Set
	Quorum    *models.Quorum

	nicks []string
}

func New() *State {
	return &State{
		byID:    make(map[string]*Room),
		Blocked: Set{},
		Banned:  Set{},
	}
}

// BootstrapRoom registers a room announced by the server. It reports whether
// the room is new and whether it became the current room. Announcing a known
// room refreshes its title and topic but keeps its unread counter.
func (s *State) BootstrapRoom(data models.RoomData) (created, selected bool) {
	if r, ok := s.byID[data.ID]; ok {
		r.Title = data.Title
		r.Topic = data.Topic
		return false, false
	}

	s.addRoom(&Room{ID: data.ID, Title: data.Title, Topic: data.Topic})
	if s.current == "" {
		s.current = data.ID
		return true, true
	}
	return true, false
}

// EnsureRoom returns the room with id, creating a bare one (titled with its
// id) when a message arrives for a room the server never announced.
func (s *State) EnsureRoom(id string) (room *Room, created bool) {
	if r, ok := s.byID[id]; ok {
		return r, false
	}
	r := &Room{ID: id, Title: id}
	s.addRoom(r)
	return r, true
}

func (s *State) addRoom(r *Room) {
	s.rooms = append(s.rooms, r)
	s.byID[r.ID] = r
}

// SelectRoom makes id the current room and clears its unread counter. It
// returns the previously current room id.
func (s *State) SelectRoom(id string) (previous string, ok bool) {
	r, ok := s.byID[id]
	if !ok {
		return s.current, false
	}
	previous = s.current
	s.current = id
	r.Unread = 0
	return previous, true
}

// IncrementUnread bumps the unread counter of a room that is not current.
// System lines (zero timestamp) never count.
func (s *State) IncrementUnread(id string, timestamp float64) bool {
	if id == s.current || timestamp == 0 {
		return false
	}
	r, ok := s.byID[id]
	if !ok {
		return false
	}
	r.Unread++
	return true
}

// ApplyPresence replaces roster, moderation status and quorum with the
// snapshot. The max attendance never decreases.
func (s *State) ApplyPresence(p models.PresenceSnapshot) {
	s.Attendees = p.Attendees
	s.MaxPeople = max(s.MaxPeople, p.Max, p.Attendees)

	s.Roster = slices.Clone(p.Current)
	slices.Sort(s.Roster)
	s.Roster = slices.Compact(s.Roster)

	if p.Statuses != nil {
		s.Blocked = NewSet(p.Statuses.Blocked...)
		s.Banned = NewSet(p.Statuses.Banned...)
	} else {
		s.Blocked = Set{}
		s.Banned = Set{}
	}
	s.Quorum = p.Quorum

	s.nicks = s.nicks[:0]
	for _, u := range s.Roster {
		s.nicks = append(s.nicks, "@"+u)
	}
}

// ApplyStatuses replaces the moderation snapshot, e.g. from /preferences.
func (s *State) ApplyStatuses(st *models.Statuses) {
	if st == nil {
		return
	}
	s.Blocked = NewSet(st.Blocked...)
	s.Banned = NewSet(st.Banned...)
}

// Block, Unblock, Ban and Unban apply a moderation action locally before the
// next presence snapshot confirms (or overrides) it.
func (s *State) Block(id string)   { s.Blocked.Add(id) }
func (s *State) Unblock(id string) { s.Blocked.Remove(id) }
func (s *State) Ban(id string)     { s.Banned.Add(id) }
func (s *State) Unban(id string)   { s.Banned.Remove(id) }

// MentionCandidates returns "@nick" completions for prefix (with or without
// the leading "@").
func (s *State) MentionCandidates(prefix string) []string {
	prefix = "@" + strings.TrimPrefix(prefix, "@")
	var out []string
	for _, n := range s.nicks {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}

func (s *State) Current() string {
	return s.current
}

func (s *State) Room(id string) (*Room, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Rooms returns rooms in announcement order.
func (s *State) Rooms() []*Room {
	return s.rooms
}

// Bootstrapped reports whether any room exists yet.
func (s *State) Bootstrapped() bool {
	return s.current != ""
}

// QuorumReached reports whether more members are present than required.
func (s *State) QuorumReached() bool {
	return s.Quorum != nil && len(s.Quorum.Present) > s.Quorum.Required
}
