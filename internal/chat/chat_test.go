package chat

import (
	"reflect"
	"testing"

	"mm/internal/models"
)

func TestNew(t *testing.T) {
	s := New()
	if s == nil {
		t.Fatal("New returned nil")
	}
	if s.Bootstrapped() {
		t.Error("fresh state must not have a current room")
	}
	if len(s.Rooms()) != 0 {
		t.Errorf("expected no rooms, got %d", len(s.Rooms()))
	}
}

func TestState_BootstrapRoom(t *testing.T) {
	s := New()

	created, selected := s.BootstrapRoom(models.RoomData{ID: "general", Title: "General", Topic: "chat"})
	if !created || !selected {
		t.Errorf("first bootstrap: created=%v selected=%v", created, selected)
	}
	if s.Current() != "general" {
		t.Errorf("current = %q, want general", s.Current())
	}

	created, selected = s.BootstrapRoom(models.RoomData{ID: "board", Title: "Board"})
	if !created || selected {
		t.Errorf("second room: created=%v selected=%v", created, selected)
	}
	if s.Current() != "general" {
		t.Errorf("current changed to %q", s.Current())
	}
}

func TestState_BootstrapRoom_Idempotent(t *testing.T) {
	s := New()
	s.BootstrapRoom(models.RoomData{ID: "general", Title: "General"})
	s.BootstrapRoom(models.RoomData{ID: "side", Title: "Side"})
	s.IncrementUnread("side", 1700000000)

	created, _ := s.BootstrapRoom(models.RoomData{ID: "side", Title: "Side", Topic: "new topic"})
	if created {
		t.Error("re-announcing a room must not create it again")
	}
	if len(s.Rooms()) != 2 {
		t.Errorf("rooms = %d, want 2", len(s.Rooms()))
	}
	r, _ := s.Room("side")
	if r.Unread != 1 {
		t.Errorf("unread reset to %d", r.Unread)
	}
	if r.Topic != "new topic" {
		t.Errorf("topic = %q", r.Topic)
	}
}

func TestState_Unread(t *testing.T) {
	s := New()
	s.BootstrapRoom(models.RoomData{ID: "general"})
	s.BootstrapRoom(models.RoomData{ID: "side"})

	if s.IncrementUnread("general", 1700000000) {
		t.Error("current room must not count unread")
	}
	if s.IncrementUnread("side", 0) {
		t.Error("system lines must not count unread")
	}
	if !s.IncrementUnread("side", 1700000000) {
		t.Error("expected increment")
	}
	r, _ := s.Room("side")
	if r.Unread != 1 {
		t.Errorf("unread = %d, want 1", r.Unread)
	}

	prev, ok := s.SelectRoom("side")
	if !ok || prev != "general" {
		t.Errorf("SelectRoom() = %q, %v", prev, ok)
	}
	if r.Unread != 0 {
		t.Errorf("unread after select = %d", r.Unread)
	}

	if _, ok := s.SelectRoom("nope"); ok {
		t.Error("selecting an unknown room must fail")
	}
	if s.Current() != "side" {
		t.Errorf("current = %q", s.Current())
	}
}

func TestState_EnsureRoom(t *testing.T) {
	s := New()
	s.BootstrapRoom(models.RoomData{ID: "general", Title: "General"})

	r, created := s.EnsureRoom("side")
	if !created || r.Title != "side" {
		t.Errorf("EnsureRoom() = %+v, %v", r, created)
	}
	again, created := s.EnsureRoom("side")
	if created || again != r {
		t.Error("EnsureRoom must be idempotent")
	}
}

func TestState_ApplyPresence_MaxMonotonic(t *testing.T) {
	s := New()
	for _, n := range []int{5, 12, 8, 20, 3} {
		s.ApplyPresence(models.PresenceSnapshot{Attendees: n})
	}
	if s.MaxPeople != 20 {
		t.Errorf("MaxPeople = %d, want 20", s.MaxPeople)
	}
	if s.Attendees != 3 {
		t.Errorf("Attendees = %d, want 3", s.Attendees)
	}

	s.ApplyPresence(models.PresenceSnapshot{Attendees: 2, Max: 31})
	if s.MaxPeople != 31 {
		t.Errorf("MaxPeople = %d, want 31", s.MaxPeople)
	}
}

func TestState_ApplyPresence_ReplacesWholesale(t *testing.T) {
	s := New()
	s.ApplyPresence(models.PresenceSnapshot{
		Current:  []string{"zed", "amy", "bob"},
		Statuses: &models.Statuses{Blocked: []string{"zed"}, Banned: []string{"bob"}},
		Quorum:   &models.Quorum{Present: []string{"amy", "bob"}, Required: 1},
	})
	if !reflect.DeepEqual(s.Roster, []string{"amy", "bob", "zed"}) {
		t.Errorf("roster = %v", s.Roster)
	}
	if !s.QuorumReached() {
		t.Error("quorum should be reached")
	}

	// optimistic edit, then a snapshot that disagrees wins
	s.Block("amy")
	s.Block("amy")
	s.Unban("bob")
	if !s.Blocked.Has("amy") || s.Banned.Has("bob") {
		t.Fatalf("optimistic edits not applied: blocked=%v banned=%v", s.Blocked.Sorted(), s.Banned.Sorted())
	}
	s.Unban("bob")
	s.Ban("bob")
	s.ApplyPresence(models.PresenceSnapshot{
		Current:  []string{"amy"},
		Statuses: &models.Statuses{Blocked: []string{}, Banned: []string{}},
	})
	if s.Blocked.Has("amy") || s.Blocked.Has("zed") || s.Banned.Has("bob") {
		t.Errorf("statuses not replaced: blocked=%v banned=%v", s.Blocked.Sorted(), s.Banned.Sorted())
	}
	if s.Quorum != nil {
		t.Error("quorum should be cleared when absent from snapshot")
	}
}

func TestState_MentionCandidates(t *testing.T) {
	s := New()
	s.ApplyPresence(models.PresenceSnapshot{Current: []string{"bob", "alice", "bobby"}})

	if got := s.MentionCandidates("@bo"); !reflect.DeepEqual(got, []string{"@bob", "@bobby"}) {
		t.Errorf("MentionCandidates(@bo) = %v", got)
	}
	if got := s.MentionCandidates("al"); !reflect.DeepEqual(got, []string{"@alice"}) {
		t.Errorf("MentionCandidates(al) = %v", got)
	}
}

func TestSet(t *testing.T) {
	s := NewSet("b", "a")
	s.Add("a")
	s.Add("c")
	s.Remove("b")
	s.Remove("b")
	if !reflect.DeepEqual(s.Sorted(), []string{"a", "c"}) {
		t.Errorf("Sorted() = %v", s.Sorted())
	}
}
