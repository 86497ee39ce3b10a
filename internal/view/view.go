// Package view is the client's display model: one channel view per room, the
// room picker, the side panel and the composer input. A front end observes it
// through a Listener. A Document is owned by the dispatch goroutine.
package view

import (
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"

	"mm/internal/markup"
)

const (
	refreshBase   = 30 * time.Second
	refreshJitter = 10 * time.Second
)

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type Channel struct {
	ID        string
	Topic     markup.Node
	Visible   bool
	Lines     []*Line
	ScrollTop int
}

// Line is one rendered chat line. Lines with a timestamp carry a timer that
// keeps their relative time label fresh.
type Line struct {
	ID   string
	Room string
	Node markup.Node

	at     time.Time
	period time.Duration
	timer  Timer
	gone   bool
}

type PickerEntry struct {
	ID     string
	Title  string
	Badge  string
	Active bool
}

type UserEntry struct {
	ID      string
	Muted   bool
	Banned  bool
	Title   string
	Actions []string
}

type QuorumBanner struct {
	Reached bool
	Text    string
}

// Panel is the side panel: who is signed in, attendance and the roster.
type Panel struct {
	Credentials   string
	Counter       int
	Users         []UserEntry
	Wide          bool
	InviteVisible bool
	Quorum        *QuorumBanner

	// Muted and Banned list every moderated user, present or not. Only
	// administrators get them.
	Muted  []string
	Banned []string
}

type Listener interface {
	LineAdded(ch *Channel, l *Line)
	LineUpdated(l *Line)
	LineRemoved(l *Line)
	ChannelShown(ch *Channel)
	PickerChanged(entries []PickerEntry)
	PanelChanged(p Panel)
	InputChanged(text string)
	Alert(msg string)
	Modal(content markup.Node)
}

// Nop implements Listener with no-ops; embed it to observe a subset.
type Nop struct{}

func (Nop) LineAdded(*Channel, *Line)   {}
func (Nop) LineUpdated(*Line)           {}
func (Nop) LineRemoved(*Line)           {}
func (Nop) ChannelShown(*Channel)       {}
func (Nop) PickerChanged([]PickerEntry) {}
func (Nop) PanelChanged(Panel)          {}
func (Nop) InputChanged(string)         {}
func (Nop) Alert(string)                {}
func (Nop) Modal(markup.Node)           {}

type Document struct {
	clock    Clock
	post     func(func())
	listener Listener

	channels map[string]*Channel
	order    []string
	lines    map[string]*Line
	shown    string

	Picker []PickerEntry
	Panel  Panel
	input  string
	closed bool
}

// New creates a document. Timer callbacks are handed to post so that they
// run on the goroutine owning the document.
func New(clock Clock, post func(func()), listener Listener) *Document {
	if clock == nil {
		clock = SystemClock
	}
	if post == nil {
		post = func(f func()) { f() }
	}
	if listener == nil {
		listener = Nop{}
	}
	return &Document{
		clock:    clock,
		post:     post,
		listener: listener,
		channels: make(map[string]*Channel),
		lines:    make(map[string]*Line),
	}
}

// Channel returns the view for a room, creating a hidden one on first use.
// The topic is only set on creation.
func (d *Document) Channel(id string, topic markup.Node) (ch *Channel, created bool) {
	if ch, ok := d.channels[id]; ok {
		return ch, false
	}
	ch = &Channel{ID: id, Topic: topic}
	d.channels[id] = ch
	d.order = append(d.order, id)
	return ch, true
}

func (d *Document) Lookup(id string) (*Channel, bool) {
	ch, ok := d.channels[id]
	return ch, ok
}

// Channels returns channel views in creation order.
func (d *Document) Channels() []*Channel {
	out := make([]*Channel, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.channels[id])
	}
	return out
}

// Show hides the currently shown channel and shows id, scrolled to its end.
func (d *Document) Show(id string, topic markup.Node) *Channel {
	if prev, ok := d.channels[d.shown]; ok {
		prev.Visible = false
	}
	ch, _ := d.Channel(id, topic)
	ch.Visible = true
	ch.ScrollTop = len(ch.Lines)
	d.shown = id
	d.listener.ChannelShown(ch)
	return ch
}

// Shown returns the id of the visible channel.
func (d *Document) Shown() string {
	return d.shown
}

// Append adds a rendered line to ch and scrolls it to the end. A non-zero at
// starts the periodic refresh of the line's "timestamp" label.
func (d *Document) Append(ch *Channel, id string, node markup.Node, at time.Time) *Line {
	l := &Line{ID: id, Room: ch.ID, Node: node, at: at}
	ch.Lines = append(ch.Lines, l)
	ch.ScrollTop = len(ch.Lines)
	if id != "" {
		d.lines[id] = l
	}
	if !at.IsZero() && !d.closed {
		l.period = refreshBase + rand.N(refreshJitter)
		d.arm(l)
	}
	d.listener.LineAdded(ch, l)
	return l
}

func (d *Document) arm(l *Line) {
	l.timer = d.clock.AfterFunc(l.period, func() {
		d.post(func() { d.refresh(l) })
	})
}

func (d *Document) refresh(l *Line) {
	if l.gone || d.closed {
		return
	}
	if ts := l.Node.Find("timestamp"); ts != nil {
		ts.SetText(Ago(l.at, d.clock.Now()))
	}
	d.listener.LineUpdated(l)
	d.arm(l)
}

// Remove deletes the line with id from its channel and stops its timer.
func (d *Document) Remove(id string) bool {
	l, ok := d.lines[id]
	if !ok {
		return false
	}
	delete(d.lines, id)
	d.stop(l)

	if ch, ok := d.channels[l.Room]; ok {
		for i, cur := range ch.Lines {
			if cur == l {
				ch.Lines = append(ch.Lines[:i], ch.Lines[i+1:]...)
				break
			}
		}
		ch.ScrollTop = min(ch.ScrollTop, len(ch.Lines))
	}
	d.listener.LineRemoved(l)
	return true
}

func (d *Document) stop(l *Line) {
	l.gone = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// Line returns the line rendered for message id.
func (d *Document) Line(id string) (*Line, bool) {
	l, ok := d.lines[id]
	return l, ok
}

func (d *Document) SetPicker(entries []PickerEntry) {
	d.Picker = entries
	d.listener.PickerChanged(entries)
}

func (d *Document) SetPanel(p Panel) {
	d.Panel = p
	d.listener.PanelChanged(p)
}

func (d *Document) Input() string {
	return d.input
}

func (d *Document) SetInput(text string) {
	d.input = text
	d.listener.InputChanged(text)
}

func (d *Document) Alert(msg string) {
	d.listener.Alert(msg)
}

func (d *Document) Modal(content markup.Node) {
	d.listener.Modal(content)
}

// Close stops every refresh timer. The document must not be used afterwards.
func (d *Document) Close() {
	if d.closed {
		return
	}
	d.closed = true
	for _, ch := range d.channels {
		for _, l := range ch.Lines {
			d.stop(l)
		}
	}
}

// Ago renders a relative time label such as "3 minutes ago".
func Ago(at, now time.Time) string {
	return humanize.RelTime(at, now, "ago", "from now")
}
