package models

import (
	"encoding/json"
	"testing"
)

func TestFrame_Classify(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantRoom     bool
		wantChat     bool
		wantPresence bool
	}{
		{"Room bootstrap", `{"room_data":{"id":"general","title":"General","topic":"chat"}}`, true, false, false},
		{"Chat event", `{"channel":"general","sender":"bob","realname":"Bob","message":"hi","timestamp":1700000000,"msgid":"m1"}`, false, true, false},
		{"System line", `{"channel":"general","sender":"","realname":"","message":"Welcome","timestamp":0,"msgid":"m0"}`, false, true, false},
		{"Pong bool", `{"pong":true,"attendees":3,"max":5,"current":["a","b","c"]}`, false, false, true},
		{"Pong token", `{"pong":"c7f1","attendees":1,"max":1,"current":["a"]}`, false, false, true},
		{"Pong false", `{"pong":false,"attendees":1}`, false, false, false},
		{"Empty channel", `{"channel":"","message":"x"}`, false, false, false},
		{"Unknown", `{"hello":"world"}`, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Frame
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if (f.RoomData != nil) != tt.wantRoom {
				t.Errorf("RoomData = %v, want present=%v", f.RoomData, tt.wantRoom)
			}
			if (f.Chat != nil) != tt.wantChat {
				t.Errorf("Chat = %v, want present=%v", f.Chat, tt.wantChat)
			}
			if (f.Presence != nil) != tt.wantPresence {
				t.Errorf("Presence = %v, want present=%v", f.Presence, tt.wantPresence)
			}
		})
	}
}

func TestFrame_PresenceFields(t *testing.T) {
	input := `{"pong":true,"attendees":2,"max":7,"current":["zed","amy"],
		"statuses":{"blocked":["zed"],"banned":[]},
		"quorum":{"present":["amy","zed"],"required":1}}`

	var f Frame
	if err := json.Unmarshal([]byte(input), &f); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	p := f.Presence
	if p == nil {
		t.Fatal("expected presence snapshot")
	}
	if p.Attendees != 2 || p.Max != 7 {
		t.Errorf("counts = %d/%d, want 2/7", p.Attendees, p.Max)
	}
	if p.Statuses == nil || len(p.Statuses.Blocked) != 1 {
		t.Errorf("statuses not decoded: %+v", p.Statuses)
	}
	if p.Quorum == nil || p.Quorum.Required != 1 || len(p.Quorum.Present) != 2 {
		t.Errorf("quorum not decoded: %+v", p.Quorum)
	}
}

func TestFrame_Malformed(t *testing.T) {
	var f Frame
	if err := json.Unmarshal([]byte(`{"channel":`), &f); err == nil {
		t.Error("expected error for truncated frame")
	}
	if err := json.Unmarshal([]byte(`{"channel":"a","timestamp":"soon"}`), &f); err == nil {
		t.Error("expected error for wrongly typed timestamp")
	}
}
