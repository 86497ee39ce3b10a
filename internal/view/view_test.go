package view

import (
	"sync"
	"testing"
	"time"

	"mm/internal/markup"
)

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every live timer once, as if their period elapsed.
func (c *fakeClock) fire() {
	c.mu.Lock()
	pending := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range pending {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type recorder struct {
	Nop
	added   []string
	updated []string
	removed []string
	shown   []string
}

func (r *recorder) LineAdded(_ *Channel, l *Line) { r.added = append(r.added, l.ID) }
func (r *recorder) LineUpdated(l *Line)           { r.updated = append(r.updated, l.ID) }
func (r *recorder) LineRemoved(l *Line)           { r.removed = append(r.removed, l.ID) }
func (r *recorder) ChannelShown(ch *Channel)      { r.shown = append(r.shown, ch.ID) }

func line(label string) markup.Node {
	return markup.El("div", markup.Attrs{"class": "line"},
		markup.El("span", markup.Attrs{"class": "timestamp"}, markup.Txt(label)),
		markup.El("div", markup.Attrs{"class": "message"}, markup.Txt("hello")),
	)
}

func TestDocument_ChannelIdempotent(t *testing.T) {
	d := New(&fakeClock{}, nil, nil)
	a, created := d.Channel("general", markup.Txt("topic"))
	if !created {
		t.Fatal("expected channel creation")
	}
	b, created := d.Channel("general", markup.Txt("other"))
	if created || a != b {
		t.Error("Channel must return the existing view")
	}
	if got := b.Topic.Text(); got != "topic" {
		t.Errorf("topic overwritten: %q", got)
	}
}

func TestDocument_Show(t *testing.T) {
	rec := &recorder{}
	d := New(&fakeClock{}, nil, rec)
	d.Show("general", markup.Node{})
	d.Show("side", markup.Node{})

	g, _ := d.Lookup("general")
	s, _ := d.Lookup("side")
	if g.Visible || !s.Visible {
		t.Errorf("visibility general=%v side=%v", g.Visible, s.Visible)
	}
	if d.Shown() != "side" {
		t.Errorf("Shown() = %q", d.Shown())
	}
	if len(rec.shown) != 2 {
		t.Errorf("shown events = %v", rec.shown)
	}
}

func TestDocument_RefreshAndRemove(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rec := &recorder{}
	d := New(clock, nil, rec)
	ch, _ := d.Channel("general", markup.Node{})

	at := clock.now.Add(-2 * time.Minute)
	l := d.Append(ch, "m1", line(Ago(at, clock.now)), at)
	d.Append(ch, "sys", line(""), time.Time{})

	if clock.live() != 1 {
		t.Fatalf("live timers = %d, want 1 (system lines have none)", clock.live())
	}
	if ch.ScrollTop != 2 {
		t.Errorf("ScrollTop = %d", ch.ScrollTop)
	}

	clock.now = clock.now.Add(time.Hour)
	clock.fire()
	if got := l.Node.Find("timestamp").Text(); got != "1 hour ago" {
		t.Errorf("label = %q", got)
	}
	if len(rec.updated) != 1 || clock.live() != 1 {
		t.Errorf("updated=%v live=%d", rec.updated, clock.live())
	}

	if !d.Remove("m1") {
		t.Fatal("Remove() = false")
	}
	if clock.live() != 0 {
		t.Errorf("timer still live after remove")
	}
	if len(ch.Lines) != 1 || ch.Lines[0].ID != "sys" {
		t.Errorf("lines after remove: %d", len(ch.Lines))
	}
	if d.Remove("m1") {
		t.Error("second Remove() must report false")
	}
}

func TestDocument_CloseStopsTimers(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	d := New(clock, nil, nil)
	ch, _ := d.Channel("general", markup.Node{})
	for _, id := range []string{"a", "b", "c"} {
		d.Append(ch, id, line("now"), clock.now)
	}
	if clock.live() != 3 {
		t.Fatalf("live = %d", clock.live())
	}
	d.Close()
	if clock.live() != 0 {
		t.Errorf("live after Close = %d", clock.live())
	}
}

func TestDocument_PostsRefresh(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var queued []func()
	d := New(clock, func(f func()) { queued = append(queued, f) }, nil)
	ch, _ := d.Channel("general", markup.Node{})
	l := d.Append(ch, "m1", line("now"), clock.now)

	clock.now = clock.now.Add(5 * time.Minute)
	clock.fire()
	if got := l.Node.Find("timestamp").Text(); got != "now" {
		t.Errorf("label changed before the posted callback ran: %q", got)
	}
	if len(queued) != 1 {
		t.Fatalf("queued = %d", len(queued))
	}
	queued[0]()
	if got := l.Node.Find("timestamp").Text(); got != "5 minutes ago" {
		t.Errorf("label = %q", got)
	}
}
