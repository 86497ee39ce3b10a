package main

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		topic bool
		want  []string
		avoid []string
	}{
		{name: "bold", text: "**hi** there", want: []string{`<div class="message">`, "<b>hi</b>"}},
		{name: "action", text: "/me waves", want: []string{`<div class="message action">waves</div>`}},
		{name: "escaped", text: "<script>", want: []string{"&lt;script&gt;"}, avoid: []string{"<script>"}},
		{name: "link", text: "see https://example.org/agenda", want: []string{`href="https://example.org/agenda"`}},
		{
			name:  "script link",
			text:  "see javascript://x.com/%0aalert(1)",
			want:  []string{"see "},
			avoid: []string{"href", "<a"},
		},
		{name: "topic markdown", text: "Agenda: *budget*", topic: true, want: []string{"<p>Agenda: <em>budget</em></p>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := render(tt.text, tt.topic)
			if err != nil {
				t.Fatalf("render() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("render(%q) = %q, missing %q", tt.text, got, w)
				}
			}
			for _, a := range tt.avoid {
				if strings.Contains(got, a) {
					t.Errorf("render(%q) = %q, should not contain %q", tt.text, got, a)
				}
			}
		})
	}
}
