// Package client is the chat session controller. A single dispatch goroutine
// owns the room/roster state and the view; inbound frames, timer callbacks,
// user input and HTTP results all run on it as closures.
package client

import (
	"context"
	"log/slog"
	"time"

	"mm/internal/auth"
	"mm/internal/chat"
	"mm/internal/content"
	"mm/internal/markup"
	"mm/internal/models"
	"mm/internal/notify"
	"mm/internal/view"
)

const (
	eventQueueSize   = 64
	defaultNotifyTTL = 10 * time.Minute
)

type API interface {
	Manage(ctx context.Context, req models.MgmtRequest) (*models.Response, error)
	Post(ctx context.Context, room, message string) (*models.Response, error)
	Invite(ctx context.Context, name string) (*models.InviteResponse, error)
	Proxy(ctx context.Context, members []string) (*models.Response, error)
}

// Settings persists user preferences across sessions.
type Settings interface {
	SetItem(name, value string) error
}

type Options struct {
	API      API
	Gate     *notify.Gate
	Notifier notify.Notifier
	Clock    view.Clock
	Listener view.Listener
	Settings Settings
}

type Controller struct {
	ctx      context.Context
	api      API
	session  *auth.Session
	state    *chat.State
	doc      *view.Document
	gate     *notify.Gate
	notifier notify.Notifier
	clock    view.Clock
	settings Settings

	events chan func()
	done   chan struct{}
	async  func(func())
	post   func(func())

	// AutocompleteOpen is set by the front end while the mention popup is
	// showing; plain Enter then picks a completion instead of sending.
	AutocompleteOpen bool
}

// New creates the controller for one session. It must be driven by Run.
func New(ctx context.Context, session *auth.Session, opts Options) *Controller {
	c := &Controller{
		ctx:      ctx,
		api:      opts.API,
		session:  session,
		state:    chat.New(),
		gate:     opts.Gate,
		notifier: opts.Notifier,
		clock:    opts.Clock,
		settings: opts.Settings,
		events:   make(chan func(), eventQueueSize),
		done:     make(chan struct{}),
		async:    func(f func()) { go f() },
	}
	if c.clock == nil {
		c.clock = view.SystemClock
	}
	if c.notifier == nil {
		c.notifier = notify.LogNotifier{}
	}
	if c.gate == nil {
		c.gate = notify.NewGate(ctx, false, defaultNotifyTTL)
	}
	c.post = c.Do
	c.doc = view.New(c.clock, c.Do, opts.Listener)

	c.state.ApplyStatuses(session.Statuses)
	c.state.Quorum = session.Quorum
	return c
}

// Run dispatches frames and queued closures until frames is closed or ctx is
// done. The view's timers are stopped on return.
func (c *Controller) Run(ctx context.Context, frames <-chan models.Frame) error {
	defer func() {
		close(c.done)
		c.doc.Close()
	}()

	c.renderPanel()
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			c.Dispatch(frame)
		case f := <-c.events:
			f()
		case <-ctx.Done():
			return nil
		}
	}
}

// Do queues f to run on the dispatch goroutine. It is safe to call from any
// goroutine; f is dropped once the session has ended.
func (c *Controller) Do(f func()) {
	select {
	case c.events <- f:
	case <-c.done:
	}
}

// Call runs f on the dispatch goroutine and waits for it. It reports false
// when the session ended before f could run.
func (c *Controller) Call(f func()) bool {
	ran := make(chan struct{})
	select {
	case c.events <- func() { f(); close(ran) }:
	case <-c.done:
		return false
	}
	select {
	case <-ran:
		return true
	case <-c.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// call runs work off the dispatch goroutine and applies its result on it.
func (c *Controller) call(work func(ctx context.Context) func()) {
	c.async(func() {
		if apply := work(c.ctx); apply != nil {
			c.post(apply)
		}
	})
}

// Dispatch routes one inbound frame.
func (c *Controller) Dispatch(frame models.Frame) {
	switch {
	case frame.RoomData != nil:
		c.bootstrapRoom(*frame.RoomData)
	case frame.Chat != nil:
		c.renderChat(*frame.Chat)
	case frame.Presence != nil:
		c.applyPresence(*frame.Presence)
	}
}

func (c *Controller) bootstrapRoom(data models.RoomData) {
	created, selected := c.state.BootstrapRoom(data)
	room, _ := c.state.Room(data.ID)
	switch {
	case selected:
		c.doc.Show(room.ID, c.topicNode(room))
	case created:
		c.doc.Channel(room.ID, c.topicNode(room))
	}
	c.renderPicker()
}

func (c *Controller) applyPresence(p models.PresenceSnapshot) {
	c.state.ApplyPresence(p)
	c.renderPanel()
	if !c.gate.Armed() {
		slog.Debug("notifications armed", "attendees", p.Attendees)
		c.gate.Arm()
	}
}

// SelectRoom shows room id and clears its unread badge.
func (c *Controller) SelectRoom(id string) bool {
	if _, ok := c.state.SelectRoom(id); !ok {
		return false
	}
	room, _ := c.state.Room(id)
	c.doc.Show(id, c.topicNode(room))
	c.renderPicker()
	return true
}

func (c *Controller) topicNode(room *chat.Room) markup.Node {
	label := markup.Txt("#" + room.ID + " (" + room.Title + "): ")
	if room.Topic == "" {
		return markup.El("div", markup.Attrs{"class": "topic"}, label)
	}
	html, err := content.RenderTopic(room.Topic)
	if err != nil {
		slog.Warn("failed to render topic", "room", room.ID, "error", err)
		return markup.El("div", markup.Attrs{"class": "topic"}, label, markup.Txt(room.Topic))
	}
	return markup.El("div", markup.Attrs{"class": "topic"}, label, markup.Raw(html, room.Topic))
}

// State exposes the room/roster state to the dispatch goroutine.
func (c *Controller) State() *chat.State {
	return c.state
}

func (c *Controller) Document() *view.Document {
	return c.doc
}

func (c *Controller) Session() *auth.Session {
	return c.session
}

func (c *Controller) Input() string {
	return c.doc.Input()
}

func (c *Controller) SetInput(text string) {
	c.doc.SetInput(text)
}
